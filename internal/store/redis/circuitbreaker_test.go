package redis

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(maxFailures, 10*time.Second)
	cb.now = clk.now
	return cb, clk
}

var errFail = errors.New("fail")

func fail() error { return errFail }
func ok() error   { return nil }

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)
	if cb.CurrentState() != StateClosed {
		t.Fatalf("initial state = %v", cb.CurrentState())
	}
	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); err != errFail {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.CurrentState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err != ErrCircuitOpen || called {
		t.Errorf("open breaker: err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_ProbeRecovers(t *testing.T) {
	cb, clk := newTestBreaker(2)
	cb.Execute(fail)
	cb.Execute(fail)

	clk.advance(9 * time.Second)
	if err := cb.Execute(ok); err != ErrCircuitOpen {
		t.Fatalf("before timeout: err = %v", err)
	}

	clk.advance(2 * time.Second)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe: err = %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.CurrentState())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(2)
	cb.Execute(fail)
	cb.Execute(fail)
	clk.advance(11 * time.Second)
	cb.Execute(fail)

	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.CurrentState())
	}
	clk.advance(5 * time.Second)
	if err := cb.Execute(ok); err != ErrCircuitOpen {
		t.Errorf("reopened breaker restarts its timeout: err = %v", err)
	}
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	cb, clk := newTestBreaker(1)
	cb.Execute(fail)
	clk.advance(11 * time.Second)

	var inner error
	cb.Execute(func() error {
		inner = cb.Execute(ok)
		return nil
	})
	if inner != ErrCircuitOpen {
		t.Errorf("second call during probe: err = %v", inner)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3)
	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(ok)
	cb.Execute(fail)
	cb.Execute(fail)
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.CurrentState())
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	cb, clk := newTestBreaker(1)
	var seen []State
	cb.OnStateChange = func(_, to State) { seen = append(seen, to) }

	cb.Execute(fail)
	clk.advance(11 * time.Second)
	cb.Execute(ok)

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}
