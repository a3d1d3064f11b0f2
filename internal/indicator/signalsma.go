package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

// SignalsMA marks bars where the close crosses a single moving average:
// Buy when the previous close was at or below the previous average and the
// close is above the current one, Sell mirrored.
type SignalsMA struct {
	name   string
	feed   model.Feed
	cfg    SignalsMAConfig
	alerts bool

	track     *maTrack
	buy, sell Series[decimal.Decimal]
	gate      alertGate
}

// NewSignalsMA builds the crossing detector. crossAlerts enables its alerts.
func NewSignalsMA(name string, feed model.Feed, cfg SignalsMAConfig, crossAlerts bool) *SignalsMA {
	return &SignalsMA{
		name:   name,
		feed:   feed,
		cfg:    cfg,
		alerts: crossAlerts,
		track:  newMATrack(cfg.MAType, cfg.Period),
	}
}

func (s *SignalsMA) Name() string { return s.name }

// label is the average as shown in alerts, e.g. "9 SMA".
func (s *SignalsMA) label() string {
	return fmt.Sprintf("%d %s", s.cfg.Period, s.cfg.MAType)
}

// Compute evaluates bar.
func (s *SignalsMA) Compute(bar int) {
	b := s.feed.Bar(bar)
	s.track.compute(bar, b.Close.InexactFloat64(), bar < s.feed.Count()-1)
	s.buy.Unset(bar)
	s.sell.Unset(bar)

	ma, ok := s.track.vals.At(bar)
	prevMA, okPrev := s.track.vals.At(bar - 1)
	if !ok || !okPrev {
		return
	}
	p := s.feed.Bar(bar - 1)
	prevClose, cur := p.Close.InexactFloat64(), b.Close.InexactFloat64()

	offset := s.feed.TickSize().Mul(decimal.NewFromInt(int64(s.cfg.SignalOffset)))
	if prevClose <= prevMA && cur > ma {
		s.buy.Set(bar, b.Low.Sub(offset))
	}
	if prevClose >= prevMA && cur < ma {
		s.sell.Set(bar, b.High.Add(offset))
	}
}

// Value returns the moving average at bar.
func (s *SignalsMA) Value(bar int) (float64, bool) { return s.track.vals.At(bar) }

func (s *SignalsMA) SignalsAt(bar int) []model.Signal {
	var out []model.Signal
	if p, ok := s.buy.At(bar); ok {
		out = append(out, newSignal(s.feed, s.name, model.SignalBuy, bar, p))
	}
	if p, ok := s.sell.At(bar); ok {
		out = append(out, newSignal(s.feed, s.name, model.SignalSell, bar, p))
	}
	return out
}

// Reset clears the average, the signal series and the alert bookkeeping.
func (s *SignalsMA) Reset() {
	s.track.reset()
	s.buy.Reset()
	s.sell.Reset()
	s.gate = alertGate{}
}

func (s *SignalsMA) SeriesNames() []string { return []string{"ma", "buy", "sell"} }

func (s *SignalsMA) Read(series string, bar int) (model.SeriesValue, bool) {
	price := func(ser *Series[decimal.Decimal]) (model.SeriesValue, bool) {
		p, ok := ser.At(bar)
		return model.ScalarValue(p.InexactFloat64()), ok
	}
	switch series {
	case "ma":
		v, ok := s.track.vals.At(bar)
		return model.ScalarValue(v), ok
	case "buy":
		return price(&s.buy)
	case "sell":
		return price(&s.sell)
	}
	return model.SeriesValue{}, false
}

func (s *SignalsMA) Alerts(closed int) []model.Alert {
	if !s.gate.pass(closed) || !s.alerts {
		return nil
	}
	var out []model.Alert
	if s.buy.Defined(closed) {
		out = append(out, newAlert(s.feed, s.name, model.AlertInfo, model.ColorBullish, closed, "Signals MA",
			"BUY SIGNAL: Price crossed and closed above the "+s.label()))
	}
	if s.sell.Defined(closed) {
		out = append(out, newAlert(s.feed, s.name, model.AlertInfo, model.ColorBearish, closed, "Signals MA",
			"SELL SIGNAL: Price crossed and closed below the "+s.label()))
	}
	return out
}
