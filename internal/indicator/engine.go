package indicator

import (
	"fmt"
	"sync"

	"trading-signalsv1/internal/model"
)

// Result is the outcome of one Engine.Update.
type Result struct {
	Closed  int            // index of the most recently closed bar, -1 if none
	Forming int            // index of the forming bar, -1 if the feed is empty
	Bars    int            // bars computed by this update
	Signals []model.Signal // signals of Closed, only on the update that closed it
	Alerts  []model.Alert  // alerts of Closed, at most once per index
}

// Engine drives one root component over a feed. It keeps the recompute
// frontier: every update recomputes from the previously forming bar up to
// the current forming bar, so each closed bar gets its final evaluation
// exactly once after it closes.
//
// Update and Apply must be called from one goroutine; the read accessors
// are safe to call concurrently with them.
type Engine struct {
	mu   sync.RWMutex
	feed model.Feed
	cfg  Config
	root Component

	next       int // first bar the next update recomputes
	lastClosed int // last closed bar whose signals were emitted
	replays    int
}

// NewEngine validates cfg and builds the component graph. Nothing is
// computed until the first Update.
func NewEngine(feed model.Feed, cfg Config) (*Engine, error) {
	root, err := build(feed, cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{feed: feed, cfg: cfg, root: root, lastClosed: -1}, nil
}

func build(feed model.Feed, cfg Config) (Component, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := Build(feed, cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cfg.Kind, err)
	}
	return root, nil
}

// Update brings every series up to the feed's forming bar and reports the
// signals and alerts of the just-closed bar.
func (e *Engine) Update() Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.computeLocked()
	count := e.feed.Count()
	res := Result{Closed: max(count-2, -1), Forming: count - 1, Bars: n}
	if res.Closed > e.lastClosed {
		res.Signals = e.signalsLocked(res.Closed)
		e.lastClosed = res.Closed
	}
	res.Alerts = e.root.Alerts(res.Closed)
	return res
}

func (e *Engine) computeLocked() int {
	count := e.feed.Count()
	if count == 0 {
		return 0
	}
	if e.next > count-1 {
		panic(fmt.Sprintf("indicator: feed shrank to %d bars below frontier %d", count, e.next))
	}
	n := 0
	for bar := e.next; bar < count; bar++ {
		e.root.Compute(bar)
		n++
	}
	e.next = count - 1
	return n
}

// Apply swaps in a new configuration. All series are discarded and the whole
// feed is replayed from bar 0. Bars that were already announced are not
// announced again.
func (e *Engine) Apply(cfg Config) error {
	root, err := build(e.feed, cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.root = root
	e.replayLocked(nil)
	e.replays++
	return nil
}

// Reseed resets the component graph and evaluates the feed again from bar 0
// under the active configuration. State anchored to the history length, the
// Heiken-Ashi seed in particular, is resolved against every bar the feed now
// holds. Closed bars not yet announced are reported to emit in order; emit
// may be nil and must not call back into the engine.
func (e *Engine) Reseed(emit func(Result)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.root.Reset()
	e.replayLocked(emit)
}

// replayLocked computes every bar once, each as if it had just closed when
// its successor is computed, and examines the alerts of every closed bar.
func (e *Engine) replayLocked(emit func(Result)) {
	count := e.feed.Count()
	for bar := 0; bar < count; bar++ {
		e.root.Compute(bar)
		closed := bar - 1
		if closed < 0 {
			continue
		}
		alerts := e.root.Alerts(closed)
		if closed <= e.lastClosed {
			continue
		}
		e.lastClosed = closed
		if emit != nil {
			emit(Result{Closed: closed, Forming: bar, Bars: 1, Signals: e.signalsLocked(closed), Alerts: alerts})
		}
	}
	e.next = max(count-1, 0)
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Replays returns how many configuration changes forced a full replay.
func (e *Engine) Replays() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.replays
}

// SeriesNames lists the readable series of the root component.
func (e *Engine) SeriesNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root.SeriesNames()
}

// Read returns one series value at bar.
func (e *Engine) Read(series string, bar int) (model.SeriesValue, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root.Read(series, bar)
}

// Values returns every defined series value at bar, keyed by series name.
func (e *Engine) Values(bar int) map[string]model.SeriesValue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]model.SeriesValue)
	for _, name := range e.root.SeriesNames() {
		if v, ok := e.root.Read(name, bar); ok {
			out[name] = v
		}
	}
	return out
}

// SignalsAt returns the signals present at bar. Signals on the forming bar
// are provisional.
func (e *Engine) SignalsAt(bar int) []model.Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.signalsLocked(bar)
}

func (e *Engine) signalsLocked(bar int) []model.Signal {
	src, ok := e.root.(SignalSource)
	if !ok || bar < 0 {
		return nil
	}
	return src.SignalsAt(bar)
}
