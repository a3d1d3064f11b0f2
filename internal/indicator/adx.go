package indicator

import (
	"math"

	"trading-signalsv1/internal/model"
)

// ADXDots grades trend strength with Wilder's average directional index.
// True range and directional movement are smoothed over Period, the
// directional index over SmoothPeriod. Each bar with a defined ADX gets a
// weak, medium or strong dot.
type ADXDots struct {
	name string
	feed model.Feed
	cfg  ADXConfig

	tr, plusDM, minusDM *maTrack
	dx                  *maTrack

	plusDI, minusDI Series[float64]
	dots            Series[model.ColorTag]
}

// NewADXDots builds the trend-strength dots.
func NewADXDots(name string, feed model.Feed, cfg ADXConfig) *ADXDots {
	return &ADXDots{
		name:    name,
		feed:    feed,
		cfg:     cfg,
		tr:      newMATrack(MASMMA, cfg.Period),
		plusDM:  newMATrack(MASMMA, cfg.Period),
		minusDM: newMATrack(MASMMA, cfg.Period),
		dx:      newMATrack(MASMMA, cfg.SmoothPeriod),
	}
}

func (a *ADXDots) Name() string { return a.name }

// directionalMove returns the true range and the +DM/-DM pair from prev to cur.
func directionalMove(prev, cur model.Candle) (tr, plus, minus float64) {
	tr = math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
	up := cur.High - prev.High
	down := prev.Low - cur.Low
	if up > down && up > 0 {
		plus = up
	}
	if down > up && down > 0 {
		minus = down
	}
	return tr, plus, minus
}

// strength grades an ADX value against the thresholds.
func (a *ADXDots) strength(adx float64) model.ColorTag {
	switch {
	case adx >= a.cfg.StrongThreshold:
		return model.ColorStrong
	case adx >= a.cfg.MediumThreshold:
		return model.ColorMedium
	}
	return model.ColorWeak
}

// Compute evaluates bar.
func (a *ADXDots) Compute(bar int) {
	a.plusDI.Unset(bar)
	a.minusDI.Unset(bar)
	a.dots.Unset(bar)
	if bar == 0 {
		return
	}

	closed := bar < a.feed.Count()-1
	p, b := a.feed.Bar(bar-1), a.feed.Bar(bar)
	tr, plus, minus := directionalMove(p.Candle(), b.Candle())
	a.tr.compute(bar, tr, closed)
	a.plusDM.compute(bar, plus, closed)
	a.minusDM.compute(bar, minus, closed)

	str, ok1 := a.tr.vals.At(bar)
	sp, ok2 := a.plusDM.vals.At(bar)
	sm, ok3 := a.minusDM.vals.At(bar)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	var pdi, mdi float64
	if str > 0 {
		pdi, mdi = 100*sp/str, 100*sm/str
	}
	a.plusDI.Set(bar, pdi)
	a.minusDI.Set(bar, mdi)

	var dx float64
	if sum := pdi + mdi; sum > 0 {
		dx = 100 * math.Abs(pdi-mdi) / sum
	}
	a.dx.compute(bar, dx, closed)
	if adx, ok := a.dx.vals.At(bar); ok {
		a.dots.Set(bar, a.strength(adx))
	}
}

// Value returns the ADX at bar.
func (a *ADXDots) Value(bar int) (float64, bool) { return a.dx.vals.At(bar) }

// Reset clears the smoothing state and all series.
func (a *ADXDots) Reset() {
	for _, t := range []*maTrack{a.tr, a.plusDM, a.minusDM, a.dx} {
		t.reset()
	}
	a.plusDI.Reset()
	a.minusDI.Reset()
	a.dots.Reset()
}

func (a *ADXDots) SeriesNames() []string { return []string{"adx", "plus_di", "minus_di", "dots"} }

func (a *ADXDots) Read(series string, bar int) (model.SeriesValue, bool) {
	scalar := func(v float64, ok bool) (model.SeriesValue, bool) {
		return model.ScalarValue(v), ok
	}
	switch series {
	case "adx":
		return scalar(a.dx.vals.At(bar))
	case "plus_di":
		return scalar(a.plusDI.At(bar))
	case "minus_di":
		return scalar(a.minusDI.At(bar))
	case "dots":
		if d, ok := a.dots.At(bar); ok {
			return model.ColorValue(d), true
		}
	}
	return model.SeriesValue{}, false
}

// Alerts is a no-op: the dots carry no alerts.
func (a *ADXDots) Alerts(int) []model.Alert { return nil }
