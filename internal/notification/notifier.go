// Package notification delivers alerts to people: logs, webhooks and chat.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"trading-signalsv1/internal/model"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert model.Alert) error
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier. A nil logger uses slog.Default.
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Send(ctx context.Context, alert model.Alert) error {
	level := slog.LevelInfo
	switch alert.Level {
	case model.AlertWarning:
		level = slog.LevelWarn
	case model.AlertCritical:
		level = slog.LevelError
	}
	n.log.Log(ctx, level, alert.Message,
		"title", alert.Title,
		"source", alert.Source,
		"instrument", alert.Instrument,
		"bar", alert.Bar,
		"ts", alert.TS,
	)
	return nil
}

// Multi sends every alert to all of its notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert model.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every alert it is sent. Used by dry runs and tests.
type Recorder struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (r *Recorder) Send(_ context.Context, alert model.Alert) error {
	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.mu.Unlock()
	return nil
}

// Alerts returns a copy of the recorded alerts.
func (r *Recorder) Alerts() []model.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Alert(nil), r.alerts...)
}
