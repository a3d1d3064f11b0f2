package indicator

import (
	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

var (
	two  = decimal.NewFromInt(2)
	four = decimal.NewFromInt(4)
)

// HeikenAshi synthesizes smoothed candles in exact prices. The first
// evaluation after a reset resolves the seed bar by scanning the feed
// backward for session starts, so the seed is anchored to the history the
// feed holds at that moment; bars before the seed carry no synthetic candle.
type HeikenAshi struct {
	name string
	feed model.Feed
	days int

	seed     int
	resolved bool

	candles Series[model.OHLC]
	dots    Series[model.ColorTag]
}

// NewHeikenAshi builds the synthesizer with a look-back of days sessions.
func NewHeikenAshi(name string, feed model.Feed, days int) *HeikenAshi {
	return &HeikenAshi{name: name, feed: feed, days: days}
}

func (h *HeikenAshi) Name() string { return h.name }

// resolveSeed walks back from the newest bar until days session starts have
// been counted. If the history holds fewer sessions the seed is bar 0.
func (h *HeikenAshi) resolveSeed() int {
	if h.days <= 0 {
		return 0
	}
	target, days := 0, 0
	for i := h.feed.Count() - 1; i >= 0; i-- {
		target = i
		if !h.feed.IsNewSession(i) {
			continue
		}
		days++
		if days == h.days {
			break
		}
	}
	return target
}

// Seed returns the resolved seed bar, or -1 before the first evaluation.
func (h *HeikenAshi) Seed() int {
	if !h.resolved {
		return -1
	}
	return h.seed
}

// Compute evaluates bar.
func (h *HeikenAshi) Compute(bar int) {
	if !h.resolved {
		h.seed = h.resolveSeed()
		h.resolved = true
	}

	if bar < h.seed {
		h.candles.Unset(bar)
		h.dots.Unset(bar)
		return
	}

	b := h.feed.Bar(bar)
	if bar == h.seed {
		h.candles.Set(bar, b.OHLC())
	} else {
		prev := h.candles.Get(bar - 1)
		c := model.OHLC{
			Close: b.Open.Add(b.High).Add(b.Low).Add(b.Close).Div(four),
			Open:  prev.Open.Add(prev.Close).Div(two),
		}
		c.High = decimal.Max(c.Close, c.Open, b.High)
		c.Low = decimal.Min(c.Close, c.Open, b.Low)
		h.candles.Set(bar, c)
	}

	prev, ok := h.candles.At(bar - 1)
	if !ok {
		h.dots.Unset(bar)
		return
	}
	h.dots.Set(bar, dotColor(prev.Trend(), h.candles.Get(bar).Trend()))
}

// dotColor colours a two-bar trend pair: a held trend keeps its colour,
// a flip is Changing.
func dotColor(prev, cur model.TrendDot) model.ColorTag {
	switch {
	case prev == cur && cur == model.TrendBullish:
		return model.ColorBullish
	case prev == cur && cur == model.TrendBearish:
		return model.ColorBearish
	}
	return model.ColorChanging
}

// Candle returns the synthetic candle at bar.
func (h *HeikenAshi) Candle(bar int) (model.OHLC, bool) { return h.candles.At(bar) }

// Trend returns the trend dot of the synthetic candle at bar.
func (h *HeikenAshi) Trend(bar int) (model.TrendDot, bool) {
	c, ok := h.candles.At(bar)
	if !ok {
		return 0, false
	}
	return c.Trend(), true
}

// Reset clears the series and forgets the seed.
func (h *HeikenAshi) Reset() {
	h.candles.Reset()
	h.dots.Reset()
	h.seed = 0
	h.resolved = false
}

func (h *HeikenAshi) SeriesNames() []string { return []string{"candle", "dots"} }

func (h *HeikenAshi) Read(series string, bar int) (model.SeriesValue, bool) {
	switch series {
	case "candle":
		if c, ok := h.candles.At(bar); ok {
			return model.CandleValue(c.Float()), true
		}
	case "dots":
		if d, ok := h.dots.At(bar); ok {
			return model.ColorValue(d), true
		}
	}
	return model.SeriesValue{}, false
}

// Alerts is a no-op: the synthesizer raises no alerts of its own.
func (h *HeikenAshi) Alerts(int) []model.Alert { return nil }
