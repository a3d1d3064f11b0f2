package indicator

import (
	"trading-signalsv1/internal/model"
)

// ZoneEdges are the threshold crossings of the oscillator between two bars.
type ZoneEdges struct {
	EnterOverbought bool
	ExitOverbought  bool
	EnterOversold   bool
	ExitOversold    bool
}

// Polarity is +1 when leaving oversold, -1 when leaving overbought, else 0.
func (e ZoneEdges) Polarity() int {
	switch {
	case e.ExitOversold:
		return 1
	case e.ExitOverbought:
		return -1
	}
	return 0
}

// zoneEdges compares two consecutive oscillator values against the levels.
func zoneEdges(prev, cur, overbought, oversold float64) ZoneEdges {
	return ZoneEdges{
		EnterOverbought: prev < overbought && cur >= overbought,
		ExitOverbought:  prev >= overbought && cur < overbought,
		EnterOversold:   prev > oversold && cur <= oversold,
		ExitOversold:    prev <= oversold && cur > oversold,
	}
}

// Laguerre is the Laguerre RSI. In fixed mode the cascade runs on the close
// with gamma = 1-alpha; in adaptive mode it runs on the fractal-energy drive
// with the estimator's gamma.
type Laguerre struct {
	name   string
	feed   model.Feed
	cfg    LaguerreConfig
	alerts bool

	fe    *FractalEnergy // nil in fixed mode
	state Series[Cascade]
	value Series[float64]
	gate  alertGate
}

// NewLaguerre builds the oscillator. zoneAlerts enables its threshold alerts.
func NewLaguerre(name string, feed model.Feed, cfg LaguerreConfig, zoneAlerts bool) *Laguerre {
	l := &Laguerre{name: name, feed: feed, cfg: cfg, alerts: zoneAlerts}
	if cfg.UseFractalEnergy {
		l.fe = NewFractalEnergy(feed, cfg.NFE, cfg.GLength, cfg.BetaDev)
	}
	return l
}

func (l *Laguerre) Name() string { return l.name }

// Compute evaluates bar.
func (l *Laguerre) Compute(bar int) {
	prev := l.state.Get(bar - 1)

	if l.fe == nil {
		b := l.feed.Bar(bar)
		c := prev.Step(b.Close.InexactFloat64(), 1-l.cfg.Alpha)
		l.state.Set(bar, c)
		l.value.Set(bar, oscillatorValue(c.SumUpDown()))
		return
	}

	l.fe.Compute(bar)
	gamma, ok := l.fe.Gamma(bar)
	if !ok {
		l.state.Set(bar, Cascade{})
		l.value.Unset(bar)
		return
	}
	c := prev.Step(l.drive(bar), gamma)
	l.state.Set(bar, c)
	l.value.Set(bar, oscillatorValue(c.CarryUpDown()))
}

func (l *Laguerre) drive(bar int) float64 {
	if l.cfg.Drive == DriveSynthetic {
		syn, _ := l.fe.Synthetic(bar)
		return syn.Close
	}
	gc, _ := l.fe.SmoothedClose(bar)
	return gc
}

// Value returns the oscillator value at bar.
func (l *Laguerre) Value(bar int) (float64, bool) { return l.value.At(bar) }

// Zone classifies the value at bar against the configured levels.
func (l *Laguerre) Zone(bar int) model.Zone {
	v, ok := l.value.At(bar)
	switch {
	case !ok:
		return model.ZoneNeutral
	case v >= l.cfg.Overbought:
		return model.ZoneOverbought
	case v <= l.cfg.Oversold:
		return model.ZoneOversold
	}
	return model.ZoneNeutral
}

// Edges returns the zone crossings from bar-1 to bar. Both values must be
// defined, otherwise no edge is reported.
func (l *Laguerre) Edges(bar int) ZoneEdges {
	prev, ok1 := l.value.At(bar - 1)
	cur, ok2 := l.value.At(bar)
	if !ok1 || !ok2 {
		return ZoneEdges{}
	}
	return zoneEdges(prev, cur, l.cfg.Overbought, l.cfg.Oversold)
}

// Reset clears all series and the alert bookkeeping.
func (l *Laguerre) Reset() {
	if l.fe != nil {
		l.fe.Reset()
	}
	l.state.Reset()
	l.value.Reset()
	l.gate = alertGate{}
}

func (l *Laguerre) SeriesNames() []string {
	if l.fe != nil {
		return []string{"value", "gamma", "smoothed_close"}
	}
	return []string{"value"}
}

func (l *Laguerre) Read(series string, bar int) (model.SeriesValue, bool) {
	var (
		v  float64
		ok bool
	)
	switch series {
	case "value":
		v, ok = l.value.At(bar)
	case "gamma":
		if l.fe != nil {
			v, ok = l.fe.Gamma(bar)
		}
	case "smoothed_close":
		if l.fe != nil {
			v, ok = l.fe.SmoothedClose(bar)
		}
	}
	if !ok {
		return model.SeriesValue{}, false
	}
	return model.ScalarValue(v), true
}

// Alerts reports the threshold crossings of the just-closed bar.
func (l *Laguerre) Alerts(closed int) []model.Alert {
	if !l.gate.pass(closed) || !l.alerts {
		return nil
	}
	e := l.Edges(closed)
	v, _ := l.value.At(closed)
	vs := formatValue(v, 5)

	var out []model.Alert
	add := func(fire bool, color model.ColorTag, msg string) {
		if fire {
			out = append(out, newAlert(l.feed, l.name, model.AlertInfo, color, closed, "Laguerre RSI", msg+" "+vs))
		}
	}
	add(e.EnterOverbought, model.ColorNone, "Laguerre RSI entered overbought region")
	add(e.ExitOverbought, model.ColorBearish, "Laguerre RSI exited overbought region")
	add(e.EnterOversold, model.ColorNone, "Laguerre RSI entered oversold region")
	add(e.ExitOversold, model.ColorBullish, "Laguerre RSI exited oversold region")
	return out
}
