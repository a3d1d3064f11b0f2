package indicator

import (
	"strings"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

// Child component names inside a composite. Child series are exposed as
// "<child>.<series>".
const (
	nameLaguerre   = "laguerre"
	nameHeikenAshi = "heikenashi"
	nameCloud      = "cloud"
	nameComposite  = "composite"
)

var compositeKinds = [...]model.SignalKind{
	model.SignalEnterLong,
	model.SignalEnterShort,
	model.SignalReenterLong,
	model.SignalReenterShort,
	model.SignalExitLong,
	model.SignalExitShort,
}

// Composite layers the oscillator, Heiken-Ashi candles and the cloud into
// entry, re-entry and exit signals. It owns its children and computes them
// for a bar before reading their series for that bar.
type Composite struct {
	name string
	feed model.Feed
	cfg  Config

	osc   *Laguerre
	ha    *HeikenAshi
	cloud *Cloud

	signals map[model.SignalKind]*Series[decimal.Decimal]
	gate    alertGate
}

// NewComposite builds the composite and its children from cfg.
func NewComposite(feed model.Feed, cfg Config) *Composite {
	c := &Composite{
		name:    nameComposite,
		feed:    feed,
		cfg:     cfg,
		osc:     NewLaguerre(nameLaguerre, feed, cfg.Laguerre, cfg.Alerts.Zones),
		ha:      NewHeikenAshi(nameHeikenAshi, feed, cfg.HeikenAshi.Days),
		cloud:   NewCloud(nameCloud, feed, cfg.Cloud, cfg.Alerts.Crossovers),
		signals: make(map[model.SignalKind]*Series[decimal.Decimal], len(compositeKinds)),
	}
	for _, k := range compositeKinds {
		c.signals[k] = &Series[decimal.Decimal]{}
	}
	return c
}

func (c *Composite) Name() string { return c.name }

func (c *Composite) children() []Component {
	return []Component{c.osc, c.ha, c.cloud}
}

// trends returns the synthetic trend dots at bar, bar-1 and bar-2.
func (c *Composite) trends(bar int) (t0, t1, t2 model.TrendDot, ok bool) {
	var ok0, ok1, ok2 bool
	t0, ok0 = c.ha.Trend(bar)
	t1, ok1 = c.ha.Trend(bar - 1)
	t2, ok2 = c.ha.Trend(bar - 2)
	return t0, t1, t2, ok0 && ok1 && ok2
}

// runRestart reports a run of dir that resumed after a one-bar interruption.
func runRestart(t0, t1, t2, dir model.TrendDot) bool {
	return t0 == dir && t1 == dir && t1 != t2
}

// Compute evaluates the children and then the signals at bar.
func (c *Composite) Compute(bar int) {
	for _, ch := range c.children() {
		ch.Compute(bar)
	}

	for _, s := range c.signals {
		s.Unset(bar)
	}
	if bar < 2 {
		return
	}
	haCandle, ok := c.ha.Candle(bar)
	if !ok {
		return
	}

	tick := c.feed.TickSize()
	entryOff := tick.Mul(decimal.NewFromInt(int64(c.cfg.Signals.EntryOffset)))
	exitOff := tick.Mul(decimal.NewFromInt(int64(c.cfg.Signals.ExitOffset)))
	high, low := haCandle.High, haCandle.Low

	// Entries: the oscillator leaving a zone.
	switch c.osc.Edges(bar).Polarity() {
	case 1:
		c.signals[model.SignalEnterLong].Set(bar, low.Sub(entryOff))
	case -1:
		c.signals[model.SignalEnterShort].Set(bar, high.Add(entryOff))
	}

	t0, t1, t2, haveTrends := c.trends(bar)

	// Re-entries: a trend-dot run resuming on the side of the oscillator.
	if lrsi, ok := c.osc.Value(bar); ok && haveTrends {
		if lrsi > 50 && runRestart(t0, t1, t2, model.TrendBullish) {
			c.signals[model.SignalReenterLong].Set(bar, low.Sub(entryOff))
		}
		if lrsi < 50 && runRestart(t0, t1, t2, model.TrendBearish) {
			c.signals[model.SignalReenterShort].Set(bar, high.Add(entryOff))
		}
	}

	// Exits: an opposite flat candle or opposite run while the cloud still
	// points the other way.
	fast, okF := c.cloud.Fast(bar)
	slow, okS := c.cloud.Slow(bar)
	if !okF || !okS {
		return
	}
	flat := haCandle
	if c.cfg.Signals.FlatCandle == CandleReal {
		b := c.feed.Bar(bar)
		flat = b.OHLC()
	}
	exitLong := fast > slow && (flat.FlatTop() || (haveTrends && runRestart(t0, t1, t2, model.TrendBearish)))
	exitShort := fast < slow && (flat.FlatBottom() || (haveTrends && runRestart(t0, t1, t2, model.TrendBullish)))
	switch {
	case exitLong:
		c.signals[model.SignalExitLong].Set(bar, high.Add(exitOff))
	case exitShort:
		c.signals[model.SignalExitShort].Set(bar, low.Sub(exitOff))
	}
}

// SignalsAt returns the composite's signals at bar followed by the cloud's
// crossovers.
func (c *Composite) SignalsAt(bar int) []model.Signal {
	var out []model.Signal
	for _, k := range compositeKinds {
		if p, ok := c.signals[k].At(bar); ok {
			out = append(out, newSignal(c.feed, c.name, k, bar, p))
		}
	}
	return append(out, c.cloud.SignalsAt(bar)...)
}

// Reset clears the children, the signal series and the alert bookkeeping.
func (c *Composite) Reset() {
	for _, ch := range c.children() {
		ch.Reset()
	}
	for _, s := range c.signals {
		s.Reset()
	}
	c.gate = alertGate{}
}

func (c *Composite) SeriesNames() []string {
	names := make([]string, 0, 16)
	for _, k := range compositeKinds {
		names = append(names, strings.ToLower(string(k)))
	}
	for _, ch := range c.children() {
		for _, s := range ch.SeriesNames() {
			names = append(names, ch.Name()+"."+s)
		}
	}
	return names
}

func (c *Composite) Read(series string, bar int) (model.SeriesValue, bool) {
	if child, sub, ok := strings.Cut(series, "."); ok {
		for _, ch := range c.children() {
			if ch.Name() == child {
				return ch.Read(sub, bar)
			}
		}
		return model.SeriesValue{}, false
	}
	s, ok := c.signals[model.SignalKind(strings.ToUpper(series))]
	if !ok {
		return model.SeriesValue{}, false
	}
	p, ok := s.At(bar)
	if !ok {
		return model.SeriesValue{}, false
	}
	return model.ScalarValue(p.InexactFloat64()), true
}

// Alerts collects the children's alerts and the composite's own for the
// just-closed bar.
func (c *Composite) Alerts(closed int) []model.Alert {
	var out []model.Alert
	for _, ch := range c.children() {
		out = append(out, ch.Alerts(closed)...)
	}
	if !c.gate.pass(closed) {
		return out
	}

	lrsi, _ := c.osc.Value(closed)
	add := func(on bool, kind model.SignalKind, msg string) {
		if !on || !c.signals[kind].Defined(closed) {
			return
		}
		color := model.ColorBearish
		if kind.Bullish() {
			color = model.ColorBullish
		}
		out = append(out, newAlert(c.feed, c.name, model.AlertWarning, color, closed, string(kind), msg))
	}
	a := c.cfg.Alerts
	add(a.Entries, model.SignalEnterLong, "Enter LONG: Laguerre RSI exited oversold region "+formatValue(lrsi, 1))
	add(a.Entries, model.SignalEnterShort, "Enter SHORT: Laguerre RSI exited overbought region "+formatValue(lrsi, 1))
	add(a.Reentries, model.SignalReenterLong, "Re-enter LONG: Trend returning to bullish")
	add(a.Reentries, model.SignalReenterShort, "Re-enter SHORT: Trend returning to bearish")
	add(a.Exits, model.SignalExitLong, "Exit LONG")
	add(a.Exits, model.SignalExitShort, "Exit SHORT")
	return out
}
