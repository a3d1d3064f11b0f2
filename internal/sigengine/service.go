// Package sigengine runs the signal engine for one instrument: it replays
// stored bars into an in-memory feed, drives the indicator engine on every
// update and fans signals, alerts and series out to the configured sinks.
package sigengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"trading-signalsv1/internal/indicator"
	"trading-signalsv1/internal/logger"
	"trading-signalsv1/internal/marketdata/barfeed"
	"trading-signalsv1/internal/marketdata/bus"
	"trading-signalsv1/internal/marketdata/replay"
	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/metrics"
	"trading-signalsv1/internal/model"
	"trading-signalsv1/internal/notification"
	"trading-signalsv1/internal/ringbuf"
)

const (
	barQueueSize   = 4096
	eventQueueSize = 4096
	sinkBufferSize = 4096
	pollInterval   = 20 * time.Millisecond
)

// ErrStopped is returned by Reload when the engine loop is not running.
var ErrStopped = errors.New("sigengine: engine loop stopped")

// Event is the output of one engine update.
type Event struct {
	Signals []model.Signal
	Alerts  []model.Alert
	Series  []model.SeriesSnapshot
}

// Deps are the collaborators of a Service. Publishers and Notifier are
// optional.
type Deps struct {
	Instrument model.Instrument
	Calendar   markethours.Calendar
	Params     indicator.Config
	Reader     model.BarReader
	Replay     replay.Options

	// Publishers receive every event, keyed by sink name ("redis", "ws").
	Publishers map[string]model.SignalPublisher
	// Notifier receives alerts only.
	Notifier notification.Notifier
	// OnApply is called with every configuration the engine switches to.
	OnApply func(ctx context.Context, cfg indicator.Config)

	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	Log     *slog.Logger
}

type reloadReq struct {
	cfg   indicator.Config
	reply chan error
}

// Service owns the feed and the engine. Only the engine loop goroutine
// mutates them; HTTP handlers read through the engine's locked accessors.
type Service struct {
	deps   Deps
	feed   *barfeed.Feed
	engine *indicator.Engine
	log    *slog.Logger

	queue   *ringbuf.Ring[model.BarUpdate]
	wake    chan struct{}
	reloads chan reloadReq
	events  chan Event
	fanout  *bus.FanOut[Event]

	lastClosed   int
	replayDone   atomic.Bool
	drained      chan struct{}
	drainedOnce  sync.Once
	loopStopped  chan struct{}
	sinksStopped sync.WaitGroup
}

// New validates the parameters and builds the engine over an empty feed.
func New(deps Deps) (*Service, error) {
	if deps.Reader == nil {
		return nil, fmt.Errorf("sigengine: bar reader is required")
	}
	if deps.Metrics == nil {
		return nil, fmt.Errorf("sigengine: metrics are required")
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = metrics.NewHealthStatus(deps.Instrument.Key())
	}

	feed := barfeed.New(deps.Instrument, deps.Calendar)
	engine, err := indicator.NewEngine(feed, deps.Params)
	if err != nil {
		return nil, err
	}

	s := &Service{
		deps:        deps,
		feed:        feed,
		engine:      engine,
		log:         deps.Log.With("instrument", deps.Instrument.Key()),
		queue:       ringbuf.New[model.BarUpdate](barQueueSize),
		wake:        make(chan struct{}, 1),
		reloads:     make(chan reloadReq),
		events:      make(chan Event, eventQueueSize),
		fanout:      bus.New[Event](sinkBufferSize),
		lastClosed:  -1,
		drained:     make(chan struct{}),
		loopStopped: make(chan struct{}),
	}
	s.fanout.OnDrop = func(sink string) {
		deps.Metrics.SinkDrops.WithLabelValues(sink).Inc()
	}
	return s, nil
}

// Engine exposes the indicator engine for read access.
func (s *Service) Engine() *indicator.Engine { return s.engine }

// Feed exposes the bar feed for read access.
func (s *Service) Feed() *barfeed.Feed { return s.feed }

// Stats is a point-in-time view of the service's queues.
type Stats struct {
	Bars         int               `json:"bars"`
	LastBar      *model.Bar        `json:"last_bar,omitempty"`
	Replays      int               `json:"replays"`
	Queued       int               `json:"queued"`
	QueueRejects uint64            `json:"queue_rejects"`
	Sinks        []bus.ChannelStat `json:"sinks"`
	ReplayDone   bool              `json:"replay_done"`
}

// Stats reports feed progress and queue fill levels.
func (s *Service) Stats() Stats {
	st := Stats{
		Bars:         s.feed.Count(),
		Replays:      s.engine.Replays(),
		Queued:       s.queue.Len(),
		QueueRejects: s.queue.Rejected(),
		Sinks:        s.fanout.ChannelStats(),
		ReplayDone:   s.replayDone.Load(),
	}
	if b, ok := s.feed.Last(); ok {
		st.LastBar = &b
	}
	return st
}

// Drained is closed once the replay finished and every queued bar update
// was processed.
func (s *Service) Drained() <-chan struct{} { return s.drained }

// Run starts the sinks, the engine loop and the replay, and blocks until
// ctx is cancelled. Sinks are flushed before Run returns.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(s.deps.Instrument.Key(), time.Now()))

	sinkCtx, stopSinks := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSinks()
	s.startSinks(sinkCtx)
	go s.fanout.Run(sinkCtx, s.events)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go s.engineLoop(loopCtx)

	replayErr := make(chan error, 1)
	go func() { replayErr <- s.runReplay(loopCtx) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-replayErr:
		if err == nil {
			<-ctx.Done()
		}
	}
	stopLoop()

	<-s.loopStopped
	close(s.events)
	s.sinksStopped.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Service) runReplay(ctx context.Context) error {
	start := time.Now()
	s.log.Info("replay starting", append(logger.LogWithTrace(ctx),
		"speed", s.deps.Replay.Speed, "steps", s.deps.Replay.IntrabarSteps)...)

	n, err := replay.New(s.deps.Reader).Run(ctx, s.deps.Instrument, s.deps.Replay, func(u model.BarUpdate) error {
		return s.enqueue(ctx, u)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.log.Error("replay failed", append(logger.LogWithTrace(ctx), "err", err)...)
		return fmt.Errorf("replay: %w", err)
	}

	s.replayDone.Store(true)
	s.deps.Health.SetReplayDone(true)
	s.signal()
	s.log.Info("replay finished", append(logger.LogWithTrace(ctx),
		"bars", n, "elapsed", time.Since(start).Round(time.Millisecond))...)
	return nil
}

// enqueue pushes u to the engine loop, backing off while the queue is full.
func (s *Service) enqueue(ctx context.Context, u model.BarUpdate) error {
	for !s.queue.Push(u) {
		s.deps.Metrics.QueueRejects.WithLabelValues("bars").Inc()
		s.signal()
		t := time.NewTimer(time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	s.signal()
	return nil
}

func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) engineLoop(ctx context.Context) {
	defer close(s.loopStopped)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.queue.Drain(func(u model.BarUpdate) { s.process(ctx, u) })
		if s.replayDone.Load() && s.queue.Len() == 0 {
			s.drainedOnce.Do(func() {
				s.reseed(ctx)
				close(s.drained)
			})
		}

		select {
		case <-ctx.Done():
			return
		case req := <-s.reloads:
			req.reply <- s.apply(ctx, req.cfg)
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// process applies one bar update and emits what the engine produced.
func (s *Service) process(ctx context.Context, u model.BarUpdate) {
	if _, err := s.feed.Apply(u); err != nil {
		s.log.Warn("bar update rejected", append(logger.LogWithTrace(ctx), "err", err)...)
		return
	}

	start := time.Now()
	res := s.engine.Update()
	m := s.deps.Metrics
	m.ComputeDur.Observe(time.Since(start).Seconds())
	m.BarsComputed.Add(float64(res.Bars))

	ev := Event{Signals: res.Signals, Alerts: res.Alerts}
	if res.Closed > s.lastClosed {
		s.lastClosed = res.Closed
		ev.Series = append(ev.Series, s.snapshot(res.Closed, true))
	}
	if res.Forming >= 0 {
		ev.Series = append(ev.Series, s.snapshot(res.Forming, false))
		s.deps.Health.SetProgress(res.Forming+1, s.feed.Bar(res.Forming).TS)
	}
	s.publish(ev)
}

// reseed evaluates the whole history again once the replay has drained, so
// the Heiken-Ashi seed is resolved against every stored bar rather than the
// first one. The refreshed series of the newest bars are republished.
func (s *Service) reseed(ctx context.Context) {
	start := time.Now()
	s.engine.Reseed(func(res indicator.Result) {
		s.publish(Event{Signals: res.Signals, Alerts: res.Alerts})
	})
	s.deps.Metrics.BarsComputed.Add(float64(s.feed.Count()))
	s.log.Info("history reseeded", append(logger.LogWithTrace(ctx),
		"bars", s.feed.Count(), "elapsed", time.Since(start).Round(time.Microsecond))...)

	var ev Event
	if s.lastClosed >= 0 {
		ev.Series = append(ev.Series, s.snapshot(s.lastClosed, true))
	}
	if last := s.feed.Count() - 1; last >= 0 {
		ev.Series = append(ev.Series, s.snapshot(last, false))
	}
	if len(ev.Series) > 0 {
		s.emit(ev)
	}
}

// publish counts what ev carries and hands it to the sinks.
func (s *Service) publish(ev Event) {
	m := s.deps.Metrics
	for _, sig := range ev.Signals {
		m.Signals.WithLabelValues(string(sig.Kind)).Inc()
	}
	for _, a := range ev.Alerts {
		m.Alerts.WithLabelValues(a.Source).Inc()
	}
	s.emit(ev)
}

// apply swaps the parameters and replays the feed. Bars already announced
// are not announced again; the refreshed closed-bar series is published.
func (s *Service) apply(ctx context.Context, cfg indicator.Config) error {
	start := time.Now()
	if err := s.engine.Apply(cfg); err != nil {
		return err
	}
	s.deps.Metrics.Replays.Inc()
	s.log.Info("parameters applied", append(logger.LogWithTrace(ctx),
		"kind", cfg.Kind, "bars", s.feed.Count(), "elapsed", time.Since(start).Round(time.Microsecond))...)

	if s.deps.OnApply != nil {
		s.deps.OnApply(ctx, cfg)
	}
	if s.lastClosed >= 0 {
		s.emit(Event{Series: []model.SeriesSnapshot{s.snapshot(s.lastClosed, true)}})
	}
	return nil
}

// Reload hands cfg to the engine loop and waits for the replay to finish.
func (s *Service) Reload(ctx context.Context, cfg indicator.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	req := reloadReq{cfg: cfg, reply: make(chan error, 1)}
	select {
	case s.reloads <- req:
	case <-s.loopStopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) snapshot(bar int, closed bool) model.SeriesSnapshot {
	return model.SeriesSnapshot{
		Instrument: s.deps.Instrument.Key(),
		Bar:        bar,
		TS:         s.feed.Bar(bar).TS,
		Closed:     closed,
		Values:     s.engine.Values(bar),
	}
}

func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.deps.Metrics.QueueRejects.WithLabelValues("events").Inc()
		s.log.Warn("event queue full, dropping update", "signals", len(ev.Signals), "alerts", len(ev.Alerts))
	}
}
