// Package tfbuilder provides an incremental timeframe resampler.
// It consumes closed bars of a finer timeframe and maintains one forming
// bar of the target timeframe, updated in O(1) per source bar. When a
// source bar lands in a new bucket the previous target bar is finalized.
// Buckets are aligned to the session open, not to the Unix epoch.
package tfbuilder

import (
	"time"

	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
)

// Builder resamples one bar stream into a coarser timeframe. It is not
// safe for concurrent use.
type Builder struct {
	tf  time.Duration
	cal markethours.Calendar

	bucket  time.Time
	forming model.Bar
	started bool
	index   int

	// OnStaleBar is called for a source bar older than the forming bucket
	// (optional). Stale bars are dropped.
	OnStaleBar func(b model.Bar)
}

// New creates a builder for a target timeframe of tf seconds.
func New(tf int, cal markethours.Calendar) *Builder {
	return &Builder{tf: time.Duration(tf) * time.Second, cal: cal}
}

// Bucket returns the start of the target bar containing t.
func (b *Builder) Bucket(t time.Time) time.Time {
	start := b.cal.SessionStart(t)
	return start.Add(t.Sub(start) / b.tf * b.tf).UTC()
}

// Push merges one source bar. It returns the closed target bar when src
// opened a new bucket, followed by a snapshot of the forming target bar.
func (b *Builder) Push(src model.Bar) []model.BarUpdate {
	bucket := b.Bucket(src.TS)

	if b.started && bucket.Before(b.bucket) {
		if b.OnStaleBar != nil {
			b.OnStaleBar(src)
		}
		return nil
	}

	var out []model.BarUpdate
	if b.started && bucket.After(b.bucket) {
		out = append(out, model.BarUpdate{Bar: b.forming, Closed: true})
		b.index++
		b.started = false
	}

	if !b.started {
		b.bucket = bucket
		b.started = true
		b.forming = model.Bar{
			Index:  b.index,
			TS:     bucket,
			Open:   src.Open,
			High:   src.High,
			Low:    src.Low,
			Close:  src.Close,
			Volume: src.Volume,
		}
		return append(out, model.BarUpdate{Bar: b.forming})
	}

	// Same bucket: merge OHLCV.
	fb := &b.forming
	if src.High.GreaterThan(fb.High) {
		fb.High = src.High
	}
	if src.Low.LessThan(fb.Low) {
		fb.Low = src.Low
	}
	fb.Close = src.Close
	fb.Volume = fb.Volume.Add(src.Volume)
	return append(out, model.BarUpdate{Bar: *fb})
}

// Flush finalizes the forming bar, if any.
func (b *Builder) Flush() (model.BarUpdate, bool) {
	if !b.started {
		return model.BarUpdate{}, false
	}
	b.started = false
	b.index++
	return model.BarUpdate{Bar: b.forming, Closed: true}, true
}

// Resample aggregates a whole ordered slice into closed target bars.
func Resample(bars []model.Bar, tf int, cal markethours.Calendar) []model.Bar {
	b := New(tf, cal)
	var out []model.Bar
	for _, src := range bars {
		for _, u := range b.Push(src) {
			if u.Closed {
				out = append(out, u.Bar)
			}
		}
	}
	if u, ok := b.Flush(); ok {
		out = append(out, u.Bar)
	}
	return out
}
