package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TrendDot is the direction of a single candle body.
type TrendDot int

const (
	TrendBearish TrendDot = -1
	TrendBullish TrendDot = 1
)

func (d TrendDot) String() string {
	if d == TrendBullish {
		return "bullish"
	}
	return "bearish"
}

// Zone places an oscillator value against the overbought/oversold thresholds.
type Zone int

const (
	ZoneNeutral Zone = iota
	ZoneOversold
	ZoneOverbought
)

func (z Zone) String() string {
	switch z {
	case ZoneOversold:
		return "oversold"
	case ZoneOverbought:
		return "overbought"
	default:
		return "neutral"
	}
}

// ColorTag is the abstract colour attached to dot series and alerts.
// Rendering maps tags to actual colours.
type ColorTag string

const (
	ColorNone     ColorTag = ""
	ColorBullish  ColorTag = "bullish"
	ColorBearish  ColorTag = "bearish"
	ColorChanging ColorTag = "changing"

	// Trend strength.
	ColorWeak   ColorTag = "weak"
	ColorMedium ColorTag = "medium"
	ColorStrong ColorTag = "strong"
)

// SignalKind enumerates every discrete event the indicator graph can emit.
type SignalKind string

const (
	SignalEnterLong    SignalKind = "ENTER_LONG"
	SignalEnterShort   SignalKind = "ENTER_SHORT"
	SignalReenterLong  SignalKind = "REENTER_LONG"
	SignalReenterShort SignalKind = "REENTER_SHORT"
	SignalExitLong     SignalKind = "EXIT_LONG"
	SignalExitShort    SignalKind = "EXIT_SHORT"

	// Cloud crossovers.
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
)

// Bullish reports whether the signal points up (long side or buy).
func (k SignalKind) Bullish() bool {
	switch k {
	case SignalEnterLong, SignalReenterLong, SignalExitShort, SignalBuy:
		return true
	}
	return false
}

// Signal is one edge-triggered event for a closed bar, with the price level
// at which it should be drawn.
type Signal struct {
	Kind     SignalKind      `json:"kind"`
	Source   string          `json:"source"` // component name, e.g. "composite"
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	Bar      int             `json:"bar"`
	TS       time.Time       `json:"ts"` // bar start time
	Price    decimal.Decimal `json:"price"`
}

// Key returns "exchange:symbol".
func (s *Signal) Key() string {
	return s.Exchange + ":" + s.Symbol
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
