package model

import (
	"context"

	"github.com/shopspring/decimal"
)

// ── Ports ──
// These interfaces decouple the indicator graph and the service from the
// concrete bar history (SQLite) and output transports (Redis, WebSocket).

// Feed is the bar accessor the indicator graph reads from. Count includes
// the still-forming last bar; every index below Count()-1 is closed.
type Feed interface {
	// Bar returns the bar at index i, 0 <= i < Count().
	Bar(i int) Bar

	// Count returns the number of bars, including the forming one.
	Count() int

	// IsNewSession reports whether bar i is the first bar of a trading session.
	IsNewSession(i int) bool

	// TickSize returns the instrument's minimum price movement.
	TickSize() decimal.Decimal

	// Instrument returns the identity of the bar stream.
	Instrument() Instrument
}

// BarReader reads bar history for replay and backtests.
type BarReader interface {
	// ReadBars returns bars for one instrument and timeframe with TS > afterTS,
	// ordered by timestamp ascending.
	ReadBars(ctx context.Context, exchange, symbol string, tf int, afterTS int64) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter stores bar history.
type BarWriter interface {
	// WriteBars upserts bars for one instrument in a single transaction.
	WriteBars(ctx context.Context, inst Instrument, bars []Bar) error

	// Close releases underlying resources.
	Close() error
}

// SignalPublisher pushes engine output to downstream consumers.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []Signal) error
	PublishAlert(ctx context.Context, alert Alert) error
	PublishSeries(ctx context.Context, snap SeriesSnapshot) error
	Close() error
}
