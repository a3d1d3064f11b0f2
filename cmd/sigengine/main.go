// cmd/sigengine replays stored bars of one instrument through the indicator
// graph and serves signals, alerts and series over HTTP, WebSocket and Redis.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-signalsv1/config"
	"trading-signalsv1/internal/api"
	"trading-signalsv1/internal/gateway"
	"trading-signalsv1/internal/indicator"
	"trading-signalsv1/internal/logger"
	"trading-signalsv1/internal/marketdata/replay"
	"trading-signalsv1/internal/metrics"
	"trading-signalsv1/internal/model"
	"trading-signalsv1/internal/notification"
	"trading-signalsv1/internal/sigengine"
	redisstore "trading-signalsv1/internal/store/redis"
	sqlitestore "trading-signalsv1/internal/store/sqlite"
)

const wsReplaySize = 4096

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.Init("sigengine", level)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	inst := cfg.Instrument()
	cal, _ := cfg.Calendar()

	params, err := config.LoadParams(cfg.ParamsFile)
	if err != nil {
		return err
	}
	log.Info("starting", "instrument", inst.Key(), "tf", inst.TF, "session", cal.String(), "kind", params.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(inst.Key())
	var metricsSrv *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.MetricsAddr, prom, health)
		metricsSrv.Start()
	}

	// ---- Bar history ----
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer reader.Close()
	health.CheckSQLite(ctx, reader.DB())

	// ---- Sinks ----
	hub := gateway.NewHub(wsReplaySize)
	hub.OnClientsChanged = func(n int) { prom.WSClients.Set(float64(n)) }
	publishers := map[string]model.SignalPublisher{"ws": hub}

	var pub *redisstore.Publisher
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		pub, err = redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, inst)
		if err != nil {
			log.Warn("redis unavailable, continuing without it", "addr", cfg.RedisAddr, "err", err)
		} else {
			pub.OnStateChange = func(_, to redisstore.State) {
				prom.RedisBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisBreakerTrips.Inc()
				}
			}
			publishers["redis"] = pub
			health.CheckRedis(ctx, pub.Client())
			defer pub.Close()
		}
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		return err
	}

	svc, err := sigengine.New(sigengine.Deps{
		Instrument: inst,
		Calendar:   cal,
		Params:     params,
		Reader:     reader,
		Replay: replay.Options{
			Speed:         cfg.ReplaySpeed,
			IntrabarSteps: cfg.IntrabarSteps,
			SourceTF:      cfg.SourceTF,
			Calendar:      cal,
		},
		Publishers: publishers,
		Notifier:   notifier,
		OnApply: func(ctx context.Context, next indicator.Config) {
			if pub == nil {
				return
			}
			doc, err := config.MarshalParams(next)
			if err == nil {
				err = pub.SaveConfig(ctx, doc)
			}
			if err != nil {
				log.Warn("saving active parameters failed", "err", err)
			}
		},
		Metrics: prom,
		Health:  health,
		Log:     log,
	})
	if err != nil {
		return err
	}

	var rdb *goredis.Client
	if pub != nil {
		rdb = pub.Client()
		go func() {
			err := redisstore.SubscribeConfig(ctx, rdb, redisstore.ConfigChannel, func(doc []byte) error {
				next, err := config.ParseParams(doc)
				if err != nil {
					return err
				}
				return svc.Reload(ctx, next)
			})
			if err != nil {
				log.Warn("config subscription stopped", "err", err)
			}
		}()
	}
	health.StartLivenessChecker(ctx, rdb, reader.DB(), 15*time.Second)

	// ---- HTTP ----
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(svc, api.Routes{WS: hub, Health: health}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	runErr := svc.Run(ctx)

	// ---- Shutdown ----
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	hub.Close()
	if metricsSrv != nil {
		metricsSrv.Stop(shutdownCtx)
	}
	return runErr
}

func buildNotifier(cfg *config.Config, log *slog.Logger) (notification.Notifier, error) {
	multi := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		multi = append(multi, tg)
	}
	return multi, nil
}
