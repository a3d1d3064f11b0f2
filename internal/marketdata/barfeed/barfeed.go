// Package barfeed is the in-memory bar series the indicator engine reads.
// The last bar is the forming one; a bar closes when the next bar arrives.
package barfeed

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
)

var (
	// ErrOutOfOrder is returned for an update older than the forming bar.
	ErrOutOfOrder = errors.New("barfeed: bar older than the forming bar")
	// ErrBarClosed is returned for a revision of a bar already marked closed.
	ErrBarClosed = errors.New("barfeed: bar already closed")
)

// Feed is a growing bar series for one instrument. It implements model.Feed.
// Apply is called by one writer; the accessors may be read concurrently.
type Feed struct {
	mu       sync.RWMutex
	inst     model.Instrument
	cal      markethours.Calendar
	bars     []model.Bar
	sessions []bool
	closed   bool // last bar received its final revision
}

var _ model.Feed = (*Feed)(nil)

// New returns an empty feed.
func New(inst model.Instrument, cal markethours.Calendar) *Feed {
	return &Feed{inst: inst, cal: cal}
}

// Apply appends a new bar or revises the forming one. Updates with the
// forming bar's timestamp replace it; later timestamps append and so close
// the previous bar. It reports whether a bar was appended.
func (f *Feed) Apply(u model.BarUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.bars)
	if n > 0 {
		last := f.bars[n-1]
		switch {
		case u.Bar.TS.Equal(last.TS):
			if f.closed {
				return false, fmt.Errorf("%w: %s", ErrBarClosed, u.Bar.TS)
			}
			u.Bar.Index = n - 1
			f.bars[n-1] = u.Bar
			f.closed = u.Closed
			return false, nil
		case u.Bar.TS.Before(last.TS):
			return false, fmt.Errorf("%w: %s before %s", ErrOutOfOrder, u.Bar.TS, last.TS)
		}
	}

	u.Bar.Index = n
	f.bars = append(f.bars, u.Bar)
	f.sessions = append(f.sessions, n == 0 || f.cal.IsNewSession(f.bars[n-1].TS, u.Bar.TS))
	f.closed = u.Closed
	return true, nil
}

// Bar returns bar i. It panics when i is out of range.
func (f *Feed) Bar(i int) model.Bar {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bars[i]
}

func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.bars)
}

// IsNewSession reports whether bar i opens a session. Bar 0 always does.
func (f *Feed) IsNewSession(i int) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sessions[i]
}

func (f *Feed) TickSize() decimal.Decimal { return f.inst.TickSize }

func (f *Feed) Instrument() model.Instrument { return f.inst }

// Last returns the newest bar, if any.
func (f *Feed) Last() (model.Bar, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.bars) == 0 {
		return model.Bar{}, false
	}
	return f.bars[len(f.bars)-1], true
}

// Bars returns a copy of bars [from, to).
func (f *Feed) Bars(from, to int) []model.Bar {
	f.mu.RLock()
	defer f.mu.RUnlock()
	from = max(from, 0)
	to = min(to, len(f.bars))
	if from >= to {
		return nil
	}
	out := make([]model.Bar, to-from)
	copy(out, f.bars[from:to])
	return out
}
