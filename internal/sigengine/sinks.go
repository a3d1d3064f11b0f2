package sigengine

import (
	"context"
	"sort"
	"time"

	"trading-signalsv1/internal/logger"
	"trading-signalsv1/internal/model"
)

const deliveryTimeout = 5 * time.Second

// startSinks subscribes one worker per publisher plus the alert notifier.
// Workers exit when the fan-out closes their channel.
func (s *Service) startSinks(ctx context.Context) {
	names := make([]string, 0, len(s.deps.Publishers))
	for name := range s.deps.Publishers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pub := s.deps.Publishers[name]
		ch := s.fanout.Subscribe(name)
		s.sinksStopped.Add(1)
		go func() {
			defer s.sinksStopped.Done()
			for ev := range ch {
				s.deliver(ctx, name, pub, ev)
			}
		}()
	}

	if s.deps.Notifier != nil {
		ch := s.fanout.Subscribe("notify")
		s.sinksStopped.Add(1)
		go func() {
			defer s.sinksStopped.Done()
			for ev := range ch {
				for _, a := range ev.Alerts {
					dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
					err := s.deps.Notifier.Send(dctx, a)
					cancel()
					s.sinkResult(ctx, "notify", err)
				}
			}
		}()
	}
}

func (s *Service) deliver(ctx context.Context, name string, pub model.SignalPublisher, ev Event) {
	dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if len(ev.Signals) > 0 {
		s.sinkResult(ctx, name, pub.PublishSignals(dctx, ev.Signals))
	}
	for _, a := range ev.Alerts {
		s.sinkResult(ctx, name, pub.PublishAlert(dctx, a))
	}
	for _, snap := range ev.Series {
		s.sinkResult(ctx, name, pub.PublishSeries(dctx, snap))
	}
}

func (s *Service) sinkResult(ctx context.Context, sink string, err error) {
	if err == nil {
		return
	}
	s.deps.Metrics.SinkErrors.WithLabelValues(sink).Inc()
	s.log.Warn("sink delivery failed", append(logger.LogWithTrace(ctx), "sink", sink, "err", err)...)
}
