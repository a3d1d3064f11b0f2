// Package metrics exposes the signal engine's Prometheus metrics and the
// health endpoint.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	BarsComputed prometheus.Counter
	ComputeDur   prometheus.Histogram
	Signals      *prometheus.CounterVec // labels: kind
	Alerts       *prometheus.CounterVec // labels: source
	SinkErrors   *prometheus.CounterVec // labels: sink
	Replays      prometheus.Counter

	// Queues between replay, engine and sinks
	QueueRejects *prometheus.CounterVec // labels: queue
	SinkDrops    *prometheus.CounterVec // labels: sink

	WSClients         prometheus.Gauge
	RedisBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBreakerTrips prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// means the process-wide default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{
		BarsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signals_bars_computed_total",
			Help: "Bar evaluations performed by the indicator engine",
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signals_compute_duration_seconds",
			Help:    "Engine update latency per bar update",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.01, 0.1, 1},
		}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_emitted_total",
			Help: "Signals emitted on closed bars (by kind)",
		}, []string{"kind"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_alerts_total",
			Help: "Alerts emitted (by component)",
		}, []string{"source"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_sink_errors_total",
			Help: "Failed deliveries to an output sink",
		}, []string{"sink"}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signals_replays_total",
			Help: "Full replays forced by configuration changes",
		}),
		QueueRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_queue_rejects_total",
			Help: "Pushes refused by a full queue",
		}, []string{"queue"}),
		SinkDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_sink_drops_total",
			Help: "Events dropped because a sink's buffer was full",
		}, []string{"sink"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signals_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signals_redis_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signals_redis_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.BarsComputed,
		m.ComputeDur,
		m.Signals,
		m.Alerts,
		m.SinkErrors,
		m.Replays,
		m.QueueRejects,
		m.SinkDrops,
		m.WSClients,
		m.RedisBreakerState,
		m.RedisBreakerTrips,
	)
	return m
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HealthStatus tracks dependency and replay state for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	Instrument     string
	Bars           int
	LastBarTime    time.Time
	ReplayDone     bool
	RedisEnabled   bool
	RedisConnected bool
	SQLiteOK       bool

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a status for one instrument stream.
func NewHealthStatus(instrument string) *HealthStatus {
	return &HealthStatus{Instrument: instrument, StartedAt: time.Now()}
}

// SetProgress records the feed length and latest bar time.
func (h *HealthStatus) SetProgress(bars int, last time.Time) {
	h.mu.Lock()
	h.Bars = bars
	h.LastBarTime = last
	h.mu.Unlock()
}

func (h *HealthStatus) SetReplayDone(v bool) {
	h.mu.Lock()
	h.ReplayDone = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the bar store and records latency.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
// Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles /healthz. Redis only degrades health when it is enabled.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall := "healthy"
	code := http.StatusOK
	if !h.SQLiteOK || (h.RedisEnabled && !h.RedisConnected) {
		overall = "degraded"
		code = http.StatusServiceUnavailable
	}

	lastBar := ""
	if !h.LastBarTime.IsZero() {
		lastBar = h.LastBarTime.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		Instrument      string  `json:"instrument"`
		Bars            int     `json:"bars"`
		LastBarTime     string  `json:"last_bar_time"`
		ReplayDone      bool    `json:"replay_done"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	}{
		Status:          overall,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Instrument:      h.Instrument,
		Bars:            h.Bars,
		LastBarTime:     lastBar,
		ReplayDone:      h.ReplayDone,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
