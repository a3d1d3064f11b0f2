// Package indicator implements the bar-indexed indicator graph: a Laguerre
// filter cascade, the fractal-energy coefficient estimator, the Laguerre
// oscillator, Heiken-Ashi candles, the moving-average cloud and the composite
// signal engine layered on top of them.
//
// Every component stores its outputs as per-bar series and computes bar i
// only from its own series at i-1 and earlier plus the feed's bar i. Computing
// the same bar twice therefore yields the same result, which is what makes
// intrabar recomputation of the forming bar safe.
package indicator

import "trading-signalsv1/internal/model"

// Averager is the interface for streaming moving averages.
type Averager interface {
	// Name returns the averager type (e.g., "SMA", "EMA").
	Name() string

	// Update folds the next closed-bar price into the average.
	Update(price float64)

	// Value returns the current average. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if price were added next,
	// WITHOUT mutating internal state.
	Peek(price float64) float64

	// Reset clears the state for reuse.
	Reset()
}

// Component is one node of the indicator graph.
type Component interface {
	// Name returns the component name used as series and alert source prefix.
	Name() string

	// Compute evaluates bar i. Bars must be visited in increasing order;
	// re-evaluating the forming bar is allowed.
	Compute(bar int)

	// Reset clears all series and per-instance bookkeeping. Engine.Reseed
	// uses it to evaluate the feed again from bar 0.
	Reset()

	// SeriesNames lists the series exposed through Read.
	SeriesNames() []string

	// Read returns the named series value at bar, false if undefined.
	Read(series string, bar int) (model.SeriesValue, bool)

	// Alerts returns the alerts for the just-closed bar. It fires at most
	// once per closed index; later calls for the same index return nil.
	Alerts(closed int) []model.Alert
}

// SignalSource is implemented by components that emit discrete signals.
type SignalSource interface {
	// SignalsAt returns the signals present at bar, in a stable order.
	SignalsAt(bar int) []model.Signal
}
