package model

import "time"

// SeriesKind tags the payload carried by a SeriesValue.
type SeriesKind string

const (
	SeriesScalar SeriesKind = "scalar"
	SeriesRange  SeriesKind = "range"
	SeriesCandle SeriesKind = "candle"
	SeriesColor  SeriesKind = "color"
)

// SeriesValue is the read-side view of one named series at one bar.
// Exactly one payload field is meaningful, selected by Kind.
type SeriesValue struct {
	Kind   SeriesKind `json:"kind"`
	Scalar float64    `json:"scalar,omitempty"`
	Range  *Range     `json:"range,omitempty"`
	Candle *Candle    `json:"candle,omitempty"`
	Color  ColorTag   `json:"color,omitempty"`
}

// ScalarValue wraps a float series value.
func ScalarValue(v float64) SeriesValue {
	return SeriesValue{Kind: SeriesScalar, Scalar: v}
}

// RangeValue wraps a band series value.
func RangeValue(r Range) SeriesValue {
	return SeriesValue{Kind: SeriesRange, Range: &r}
}

// CandleValue wraps a candle series value.
func CandleValue(c Candle) SeriesValue {
	return SeriesValue{Kind: SeriesCandle, Candle: &c}
}

// ColorValue wraps a colour-tag series value.
func ColorValue(c ColorTag) SeriesValue {
	return SeriesValue{Kind: SeriesColor, Color: c}
}

// SeriesSnapshot is every defined series value of one bar.
type SeriesSnapshot struct {
	Instrument string                 `json:"instrument"`
	Bar        int                    `json:"bar"`
	TS         time.Time              `json:"ts"`
	Closed     bool                   `json:"closed"` // false while the bar is forming
	Values     map[string]SeriesValue `json:"values"`
}
