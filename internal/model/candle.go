package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one closed or forming OHLCV bar for a single instrument.
// Prices are fixed-precision decimals; indicator math converts them to float64.
type Bar struct {
	Index  int             `json:"index"`
	TS     time.Time       `json:"ts"` // bar start time (UTC)
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Candle returns the float view of the bar's OHLC shape.
func (b *Bar) Candle() Candle {
	return b.OHLC().Float()
}

// OHLC returns the bar's prices as an exact candle.
func (b *Bar) OHLC() OHLC {
	return OHLC{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// BarUpdate is one step of a bar stream: either a new bar or a revision of
// the forming one. Closed marks the final revision of Bar.
type BarUpdate struct {
	Bar    Bar  `json:"bar"`
	Closed bool `json:"closed"`
}

// Candle is an OHLC shape in float64, used for series output and the
// float recursions.
type Candle struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// OHLC is a candle in fixed-precision prices. Heiken-Ashi candles are kept
// in this form so flat tops and bottoms compare exactly.
type OHLC struct {
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// Float converts the candle for series output.
func (c OHLC) Float() Candle {
	return Candle{
		Open:  c.Open.InexactFloat64(),
		High:  c.High.InexactFloat64(),
		Low:   c.Low.InexactFloat64(),
		Close: c.Close.InexactFloat64(),
	}
}

// Equal reports whether both candles hold the same prices.
func (c OHLC) Equal(o OHLC) bool {
	return c.Open.Equal(o.Open) && c.High.Equal(o.High) && c.Low.Equal(o.Low) && c.Close.Equal(o.Close)
}

// Trend classifies the candle body. Ties resolve bullish.
func (c OHLC) Trend() TrendDot {
	if c.Close.GreaterThanOrEqual(c.Open) {
		return TrendBullish
	}
	return TrendBearish
}

// FlatTop reports a bearish body that opened at its high.
func (c OHLC) FlatTop() bool {
	return c.Close.LessThan(c.Open) && c.High.Equal(c.Open)
}

// FlatBottom reports a bullish body that opened at its low.
func (c OHLC) FlatBottom() bool {
	return c.Close.GreaterThan(c.Open) && c.Low.Equal(c.Open)
}

// Range is a band between two values, Upper >= Lower by construction.
type Range struct {
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}
