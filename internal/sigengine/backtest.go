package sigengine

import (
	"context"
	"fmt"
	"time"

	"trading-signalsv1/internal/indicator"
	"trading-signalsv1/internal/marketdata/barfeed"
	"trading-signalsv1/internal/marketdata/replay"
	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
)

// Report summarises one backtest run.
type Report struct {
	Bars     int
	Updates  int
	Signals  []model.Signal
	Counts   map[model.SignalKind]int
	Alerts   []model.Alert
	Duration time.Duration
}

// BacktestOptions select the stored range and the intrabar resolution.
type BacktestOptions struct {
	FromTS        int64
	IntrabarSteps int
	SourceTF      int // replay finer stored bars resampled into inst.TF
}

// Backtest replays stored bars into a feed at full speed, then evaluates the
// complete history once through a fresh engine and collects every signal and
// alert in bar order. Evaluating after the history is loaded anchors the
// Heiken-Ashi seed to it, as the live service does once its replay drains.
// Signals of the last bar are provisional and included.
func Backtest(ctx context.Context, reader model.BarReader, inst model.Instrument, cal markethours.Calendar,
	params indicator.Config, opts BacktestOptions) (Report, error) {
	if err := params.Validate(); err != nil {
		return Report{}, err
	}
	start := time.Now()
	feed := barfeed.New(inst, cal)
	rep := Report{Counts: make(map[model.SignalKind]int)}

	n, err := replay.New(reader).Run(ctx, inst, replay.Options{
		FromTS:        opts.FromTS,
		IntrabarSteps: opts.IntrabarSteps,
		SourceTF:      opts.SourceTF,
		Calendar:      cal,
	}, func(u model.BarUpdate) error {
		if _, err := feed.Apply(u); err != nil {
			return err
		}
		rep.Updates++
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("backtest %s: %w", inst.Key(), err)
	}

	engine, err := indicator.NewEngine(feed, params)
	if err != nil {
		return Report{}, err
	}
	record := func(sigs []model.Signal) {
		for _, s := range sigs {
			rep.Counts[s.Kind]++
		}
		rep.Signals = append(rep.Signals, sigs...)
	}
	engine.Reseed(func(res indicator.Result) {
		record(res.Signals)
		rep.Alerts = append(rep.Alerts, res.Alerts...)
	})

	rep.Bars = n
	if last := feed.Count() - 1; last >= 0 {
		record(engine.SignalsAt(last))
	}
	rep.Duration = time.Since(start)
	return rep, nil
}
