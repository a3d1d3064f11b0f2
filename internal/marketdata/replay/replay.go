// Package replay reads bar history from a store and plays it into the
// signal engine at a configurable speed, optionally as several forming
// revisions per bar.
package replay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/marketdata/tfbuilder"
	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
)

const maxGap = 5 * time.Second

// Options controls playback.
type Options struct {
	// Speed is the playback multiplier: 1 = real time, 10 = 10x, 0 = as fast
	// as possible.
	Speed float64
	// IntrabarSteps is the number of updates per bar. Values above 1 emit
	// Steps-1 forming revisions before the closed bar.
	IntrabarSteps int
	// FromTS replays only bars after this Unix timestamp (0 = all).
	FromTS int64

	// SourceTF, when it divides the instrument timeframe, replays the stored
	// bars of that finer timeframe resampled into the instrument timeframe.
	// Every source bar becomes one forming revision and IntrabarSteps is
	// ignored. Buckets align to Calendar's session open.
	SourceTF int
	Calendar markethours.Calendar
}

func (o Options) resampling(tf int) bool {
	return o.SourceTF > 0 && o.SourceTF < tf && tf%o.SourceTF == 0
}

// Replayer plays stored bars for one instrument.
type Replayer struct {
	reader model.BarReader
}

// New creates a Replayer backed by a bar reader.
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader}
}

// Run emits every stored bar of inst to emit in timestamp order. It returns
// the number of bars played, stopping early when ctx is cancelled or emit
// fails.
func (r *Replayer) Run(ctx context.Context, inst model.Instrument, opts Options, emit func(model.BarUpdate) error) (int, error) {
	srcTF := inst.TF
	var builder *tfbuilder.Builder
	if opts.resampling(inst.TF) {
		srcTF = opts.SourceTF
		builder = tfbuilder.New(inst.TF, opts.Calendar)
	}

	bars, err := r.reader.ReadBars(ctx, inst.Exchange, inst.Symbol, srcTF, opts.FromTS)
	if err != nil {
		return 0, fmt.Errorf("replay read %s: %w", inst.Key(), err)
	}
	if len(bars) == 0 {
		log.Printf("[replay] no bars stored for %s tf=%d", inst.Key(), srcTF)
		return 0, nil
	}

	steps := max(opts.IntrabarSteps, 1)
	if builder != nil {
		steps = 1
	}
	log.Printf("[replay] loaded %d bars for %s tf=%d, speed=%.1fx steps=%d", len(bars), inst.Key(), srcTF, opts.Speed, steps)

	played := 0
	send := func(updates []model.BarUpdate, pause time.Duration) error {
		for _, u := range updates {
			if err := sleep(ctx, pause); err != nil {
				return err
			}
			if err := emit(u); err != nil {
				return fmt.Errorf("replay emit bar %d: %w", u.Bar.Index, err)
			}
			if u.Closed {
				played++
			}
		}
		return nil
	}

	var prevTS time.Time
	for _, b := range bars {
		if err := ctx.Err(); err != nil {
			log.Printf("[replay] cancelled after %d bars", played)
			return played, err
		}

		var pause time.Duration
		if opts.Speed > 0 && !prevTS.IsZero() {
			if gap := b.TS.Sub(prevTS); gap > 0 {
				pause = min(time.Duration(float64(gap)/opts.Speed), maxGap) / time.Duration(steps)
			}
		}
		prevTS = b.TS

		updates := Steps(b, steps)
		if builder != nil {
			updates = builder.Push(b)
		}
		if err := send(updates, pause); err != nil {
			return played, err
		}
	}
	if builder != nil {
		if u, ok := builder.Flush(); ok {
			if err := send([]model.BarUpdate{u}, 0); err != nil {
				return played, err
			}
		}
	}

	log.Printf("[replay] completed: %d bars replayed", played)
	return played, nil
}

// Steps splits a bar into n updates. The first n-1 are forming revisions
// whose close walks linearly from the open to the final close; the last is
// the bar itself, marked closed.
func Steps(b model.Bar, n int) []model.BarUpdate {
	out := make([]model.BarUpdate, 0, max(n, 1))
	for k := 1; k < n; k++ {
		frac := decimal.NewFromInt(int64(k)).Div(decimal.NewFromInt(int64(n)))
		c := b.Open.Add(b.Close.Sub(b.Open).Mul(frac))
		out = append(out, model.BarUpdate{Bar: model.Bar{
			Index:  b.Index,
			TS:     b.TS,
			Open:   b.Open,
			High:   decimal.Max(b.Open, c),
			Low:    decimal.Min(b.Open, c),
			Close:  c,
			Volume: b.Volume.Mul(frac),
		}})
	}
	return append(out, model.BarUpdate{Bar: b, Closed: true})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
