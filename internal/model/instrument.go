package model

import "github.com/shopspring/decimal"

// Instrument identifies the symbol a bar stream belongs to.
type Instrument struct {
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	TF       int             `json:"tf"`        // bar duration in seconds
	TickSize decimal.Decimal `json:"tick_size"` // minimum price movement
}

// Key returns a unique key for this instrument: "exchange:symbol".
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.Symbol
}
