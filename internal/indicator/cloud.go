package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

// maTrack turns a streaming averager into a bar-indexed series. Closed bars
// are folded into the averager exactly once; the forming bar is evaluated
// against the committed state and never mutates it. The first input may
// arrive at any bar, later ones must be contiguous.
type maTrack struct {
	typ       MAType
	period    int
	avg       Snapshottable
	committed int
	vals      Series[float64]
}

func newMATrack(t MAType, period int) *maTrack {
	return &maTrack{typ: t, period: period, avg: newAverager(t, period), committed: -1}
}

func (m *maTrack) compute(bar int, price float64, closed bool) {
	if bar <= m.committed {
		return
	}
	if m.committed >= 0 && bar != m.committed+1 {
		panic(fmt.Sprintf("indicator: %s(%d) skipped from bar %d to %d", m.typ, m.period, m.committed, bar))
	}

	if closed {
		m.avg.Update(price)
		m.committed = bar
		m.store(bar, m.avg.Ready(), m.avg.Value())
		return
	}

	if m.avg.Ready() {
		m.vals.Set(bar, m.avg.Peek(price))
		return
	}
	// Still warming up: fold the price into a scratch copy of the state.
	snap := m.avg.Snapshot()
	m.avg.Update(price)
	m.store(bar, m.avg.Ready(), m.avg.Value())
	if err := m.avg.RestoreFromSnapshot(snap); err != nil {
		panic(err)
	}
}

func (m *maTrack) store(bar int, ok bool, v float64) {
	if ok {
		m.vals.Set(bar, v)
	} else {
		m.vals.Unset(bar)
	}
}

func (m *maTrack) reset() {
	m.avg.Reset()
	m.committed = -1
	m.vals.Reset()
}

// classify applies the one-bar hysteresis: a band stays active on the bar
// after the averages were strictly ordered in its favour.
func classify(fast, slow, prevFast, prevSlow float64, hasPrev bool) (bullish, bearish bool) {
	bullish = fast >= slow || (hasPrev && prevFast > prevSlow)
	bearish = (fast <= slow || (hasPrev && prevFast < prevSlow)) && !bullish
	return bullish, bearish
}

// cloudDot colours the strict ordering of the averages; equal is uncoloured.
func cloudDot(fast, slow float64) model.ColorTag {
	switch {
	case fast > slow:
		return model.ColorBullish
	case fast < slow:
		return model.ColorBearish
	}
	return model.ColorNone
}

var cloudMATypes = [...]MAType{MASMA, MAEMA, MASMMA}

// Cloud is the moving-average cloud. It keeps fast/slow tracks for every
// averaging type and reads the configured pair.
type Cloud struct {
	name   string
	feed   model.Feed
	cfg    CloudConfig
	alerts bool

	tracks map[MAType][2]*maTrack

	fast, slow       Series[float64]
	bullish, bearish Series[model.Range]
	dots             Series[model.ColorTag]
	buy, sell        Series[decimal.Decimal]
	gate             alertGate
}

// NewCloud builds the cloud. crossAlerts enables its buy/sell alerts.
func NewCloud(name string, feed model.Feed, cfg CloudConfig, crossAlerts bool) *Cloud {
	c := &Cloud{
		name:   name,
		feed:   feed,
		cfg:    cfg,
		alerts: crossAlerts,
		tracks: make(map[MAType][2]*maTrack, len(cloudMATypes)),
	}
	for _, t := range cloudMATypes {
		c.tracks[t] = [2]*maTrack{newMATrack(t, cfg.FastPeriod), newMATrack(t, cfg.SlowPeriod)}
	}
	return c
}

func (c *Cloud) Name() string { return c.name }

// Compute evaluates bar.
func (c *Cloud) Compute(bar int) {
	b := c.feed.Bar(bar)
	price := b.Close.InexactFloat64()
	closed := bar < c.feed.Count()-1
	for _, t := range cloudMATypes {
		pair := c.tracks[t]
		pair[0].compute(bar, price, closed)
		pair[1].compute(bar, price, closed)
	}

	pair := c.tracks[c.cfg.MAType]
	f, okF := pair[0].vals.At(bar)
	s, okS := pair[1].vals.At(bar)
	if !okF || !okS {
		c.fast.Unset(bar)
		c.slow.Unset(bar)
		c.bullish.Unset(bar)
		c.bearish.Unset(bar)
		c.dots.Unset(bar)
		c.buy.Unset(bar)
		c.sell.Unset(bar)
		return
	}
	c.fast.Set(bar, f)
	c.slow.Set(bar, s)
	c.dots.Set(bar, cloudDot(f, s))

	pf, okPF := c.fast.At(bar - 1)
	ps, okPS := c.slow.At(bar - 1)
	hasPrev := okPF && okPS

	bull, bear := classify(f, s, pf, ps, hasPrev)
	if bull {
		c.bullish.Set(bar, model.Range{Upper: f, Lower: s})
	} else {
		c.bullish.Unset(bar)
	}
	if bear {
		c.bearish.Set(bar, model.Range{Upper: s, Lower: f})
	} else {
		c.bearish.Unset(bar)
	}

	offset := c.feed.TickSize().Mul(decimal.NewFromInt(int64(c.cfg.SignalOffset)))
	if hasPrev && f > s && pf <= ps {
		c.buy.Set(bar, b.Low.Sub(offset))
	} else {
		c.buy.Unset(bar)
	}
	if hasPrev && f < s && pf >= ps {
		c.sell.Set(bar, b.High.Add(offset))
	} else {
		c.sell.Unset(bar)
	}
}

// Fast returns the selected fast average at bar.
func (c *Cloud) Fast(bar int) (float64, bool) { return c.fast.At(bar) }

// Slow returns the selected slow average at bar.
func (c *Cloud) Slow(bar int) (float64, bool) { return c.slow.At(bar) }

// Bands reports which cloud bands are active at bar.
func (c *Cloud) Bands(bar int) (bullish, bearish bool) {
	return c.bullish.Defined(bar), c.bearish.Defined(bar)
}

// Reset clears all series, averager state and alert bookkeeping.
func (c *Cloud) Reset() {
	for _, pair := range c.tracks {
		pair[0].reset()
		pair[1].reset()
	}
	c.fast.Reset()
	c.slow.Reset()
	c.bullish.Reset()
	c.bearish.Reset()
	c.dots.Reset()
	c.buy.Reset()
	c.sell.Reset()
	c.gate = alertGate{}
}

func (c *Cloud) SeriesNames() []string {
	return []string{"fast", "slow", "bullish", "bearish", "dots", "buy", "sell"}
}

func (c *Cloud) Read(series string, bar int) (model.SeriesValue, bool) {
	scalar := func(s *Series[float64]) (model.SeriesValue, bool) {
		v, ok := s.At(bar)
		return model.ScalarValue(v), ok
	}
	band := func(s *Series[model.Range]) (model.SeriesValue, bool) {
		v, ok := s.At(bar)
		return model.RangeValue(v), ok
	}
	price := func(s *Series[decimal.Decimal]) (model.SeriesValue, bool) {
		v, ok := s.At(bar)
		return model.ScalarValue(v.InexactFloat64()), ok
	}

	var (
		v  model.SeriesValue
		ok bool
	)
	switch series {
	case "fast":
		v, ok = scalar(&c.fast)
	case "slow":
		v, ok = scalar(&c.slow)
	case "bullish":
		v, ok = band(&c.bullish)
	case "bearish":
		v, ok = band(&c.bearish)
	case "dots":
		var d model.ColorTag
		d, ok = c.dots.At(bar)
		v = model.ColorValue(d)
	case "buy":
		v, ok = price(&c.buy)
	case "sell":
		v, ok = price(&c.sell)
	}
	if !ok {
		return model.SeriesValue{}, false
	}
	return v, true
}

// SignalsAt returns the crossover signals at bar.
func (c *Cloud) SignalsAt(bar int) []model.Signal {
	var out []model.Signal
	if p, ok := c.buy.At(bar); ok {
		out = append(out, newSignal(c.feed, c.name, model.SignalBuy, bar, p))
	}
	if p, ok := c.sell.At(bar); ok {
		out = append(out, newSignal(c.feed, c.name, model.SignalSell, bar, p))
	}
	return out
}

// Alerts reports the crossovers of the just-closed bar.
func (c *Cloud) Alerts(closed int) []model.Alert {
	if !c.gate.pass(closed) || !c.alerts {
		return nil
	}
	var out []model.Alert
	if c.buy.Defined(closed) {
		out = append(out, newAlert(c.feed, c.name, model.AlertInfo, model.ColorBullish, closed, "MA Cloud",
			fmt.Sprintf("BUY SIGNAL: %s Cloud turned bullish", c.cfg.MAType)))
	}
	if c.sell.Defined(closed) {
		out = append(out, newAlert(c.feed, c.name, model.AlertInfo, model.ColorBearish, closed, "MA Cloud",
			fmt.Sprintf("SELL SIGNAL: %s Cloud turned bearish", c.cfg.MAType)))
	}
	return out
}

func newSignal(feed model.Feed, source string, kind model.SignalKind, bar int, price decimal.Decimal) model.Signal {
	inst := feed.Instrument()
	b := feed.Bar(bar)
	return model.Signal{
		Kind:     kind,
		Source:   source,
		Symbol:   inst.Symbol,
		Exchange: inst.Exchange,
		Bar:      bar,
		TS:       b.TS,
		Price:    price,
	}
}
