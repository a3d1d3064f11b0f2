package indicator

import "fmt"

// Snapshottable is implemented by averagers whose state can be captured and
// put back. The cloud uses it to evaluate the forming bar without folding
// it into the committed state.
type Snapshottable interface {
	Averager
	Snapshot() AveragerSnapshot
	RestoreFromSnapshot(snap AveragerSnapshot) error
}

// AveragerSnapshot holds the state of a single averager instance.
type AveragerSnapshot struct {
	Type   string `json:"type"`   // "SMA", "EMA", "SMMA"
	Period int    `json:"period"` // averaging period

	// SMA fields
	Buf     []float64 `json:"buf,omitempty"`
	Idx     int       `json:"idx,omitempty"`
	Count   int       `json:"count"`
	Sum     float64   `json:"sum,omitempty"`
	Current float64   `json:"current"`

	// EMA fields
	Multiplier float64 `json:"multiplier,omitempty"`
}

func errSnapshotType(want, got string) error {
	return fmt.Errorf("snapshot type mismatch: want %s, got %s", want, got)
}

// newAverager builds the averager for an MA type.
func newAverager(t MAType, period int) Snapshottable {
	switch t {
	case MASMA:
		return NewSMA(period)
	case MASMMA:
		return NewSMMA(period)
	default:
		return NewEMA(period)
	}
}
