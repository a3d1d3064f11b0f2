// Package redis publishes engine output to Redis and listens for runtime
// configuration changes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-signalsv1/internal/model"
)

const defaultLatestTTL = 24 * time.Hour

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	MaxFailures  int           // consecutive failures before the breaker opens (default 5)
	ResetTimeout time.Duration // breaker open period (default 10s)
	BacklogSize  int           // writes buffered while open (default 10000)
}

// Publisher writes signals, alerts and latest series values of one
// instrument. Every batch is one pipeline guarded by a circuit breaker;
// batches rejected by an open breaker are buffered and flushed once it
// closes.
type Publisher struct {
	client  *goredis.Client
	cb      *CircuitBreaker
	backlog *backlog
	keys    keys
	flushCh chan struct{}

	// OnStateChange mirrors breaker transitions (for metrics).
	OnStateChange func(from, to State)
}

var _ model.SignalPublisher = (*Publisher)(nil)

// New connects to Redis, pings it and returns a publisher for inst.
func New(cfg Config, inst model.Instrument) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg, inst), nil
}

// NewWithClient builds a publisher over an existing client without pinging.
func NewWithClient(client *goredis.Client, cfg Config, inst model.Instrument) *Publisher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	p := &Publisher{
		client:  client,
		cb:      NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		backlog: newBacklog(cfg.BacklogSize),
		keys:    newKeys(inst),
		flushCh: make(chan struct{}, 1),
	}
	p.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if p.OnStateChange != nil {
			p.OnStateChange(from, to)
		}
		if to == StateClosed {
			select {
			case p.flushCh <- struct{}{}:
			default:
			}
		}
	}
	return p
}

// Client returns the underlying client for health checks and subscriptions.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the publisher's circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Pending returns how many writes wait for the breaker to close.
func (p *Publisher) Pending() int { return p.backlog.len() }

// PublishSignals appends each signal to the signal stream, publishes it and
// stores the newest as latest.
func (p *Publisher) PublishSignals(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	ops := make([]op, 0, 2*len(signals)+1)
	var last string
	for i := range signals {
		data := string(signals[i].JSON())
		ops = append(ops,
			op{kind: opXAdd, key: p.keys.signalStream, payload: data},
			op{kind: opPublish, key: p.keys.signalChannel, payload: data},
		)
		last = data
	}
	ops = append(ops, op{kind: opSet, key: p.keys.signalLatest, payload: last})
	return p.write(ctx, ops)
}

// PublishAlert appends the alert to the alert stream and publishes it.
func (p *Publisher) PublishAlert(ctx context.Context, alert model.Alert) error {
	data := string(alert.JSON())
	return p.write(ctx, []op{
		{kind: opXAdd, key: p.keys.alertStream, payload: data},
		{kind: opPublish, key: p.keys.alertChannel, payload: data},
	})
}

// PublishSeries stores and publishes the latest series snapshot. Forming
// bars are published only; the stored value is always a closed bar.
func (p *Publisher) PublishSeries(ctx context.Context, snap model.SeriesSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis series marshal: %w", err)
	}
	data := string(b)
	ops := []op{{kind: opPublish, key: p.keys.seriesChannel, payload: data}}
	if snap.Closed {
		ops = append(ops, op{kind: opSet, key: p.keys.seriesLatest, payload: data})
	}
	return p.write(ctx, ops)
}

// SaveConfig stores the active parameter document so dashboards can read it.
func (p *Publisher) SaveConfig(ctx context.Context, doc []byte) error {
	return p.write(ctx, []op{{kind: opSet, key: p.keys.configLatest, payload: string(doc)}})
}

// write runs ops as one pipeline through the breaker. When the breaker is
// open the ops are buffered and write returns nil.
func (p *Publisher) write(ctx context.Context, ops []op) error {
	select {
	case <-p.flushCh:
		if pending := p.backlog.take(); len(pending) > 0 {
			ops = append(pending, ops...)
		}
	default:
	}

	err := p.cb.Execute(func() error { return p.exec(ctx, ops) })
	if errors.Is(err, ErrCircuitOpen) {
		p.backlog.add(ops)
		return nil
	}
	return err
}

func (p *Publisher) exec(ctx context.Context, ops []op) error {
	_, err := p.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, o := range ops {
			switch o.kind {
			case opPublish:
				pipe.Publish(ctx, o.key, o.payload)
			case opXAdd:
				pipe.XAdd(ctx, &goredis.XAddArgs{
					Stream: o.key,
					MaxLen: p.keys.maxLen,
					Approx: true,
					Values: map[string]interface{}{"data": o.payload},
				})
			case opSet:
				pipe.Set(ctx, o.key, o.payload, defaultLatestTTL)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline (%d ops): %w", len(ops), err)
	}
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	if n := p.backlog.len(); n > 0 {
		log.Printf("[redis] closing with %d unflushed writes", n)
	}
	return p.client.Close()
}
