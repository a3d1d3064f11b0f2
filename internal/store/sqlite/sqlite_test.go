package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signalsv1/internal/model"
)

func testBar(ts time.Time, o, h, l, c string) model.Bar {
	return model.Bar{
		TS:     ts,
		Open:   decimal.RequireFromString(o),
		High:   decimal.RequireFromString(h),
		Low:    decimal.RequireFromString(l),
		Close:  decimal.RequireFromString(c),
		Volume: decimal.NewFromInt(1200),
	}
}

func TestWriteAndReadBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	defer w.Close()

	inst := model.Instrument{Symbol: "ES", Exchange: "CME", TF: 60}
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	bars := []model.Bar{
		testBar(t0.Add(time.Minute), "5100.25", "5101.00", "5099.75", "5100.50"),
		testBar(t0, "5099.00", "5100.50", "5098.25", "5100.25"),
	}
	ctx := context.Background()
	require.NoError(t, w.WriteBars(ctx, inst, bars))

	// Upsert replaces rather than duplicates.
	bars[0].Close = decimal.RequireFromString("5100.75")
	require.NoError(t, w.WriteBars(ctx, inst, bars[:1]))

	last, err := w.GetLastTimestamp(inst)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute).Unix(), last)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadBars(ctx, "CME", "ES", 60, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	assert.True(t, got[0].TS.Equal(t0), "ordered by ts")
	assert.True(t, got[0].Low.Equal(decimal.RequireFromString("5098.25")))
	assert.True(t, got[1].Close.Equal(decimal.RequireFromString("5100.75")))

	n, err := r.CountBars(ctx, "CME", "ES", 60)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	after, err := r.ReadBars(ctx, "CME", "ES", 60, t0.Unix())
	require.NoError(t, err)
	assert.Len(t, after, 1)

	other, err := r.ReadBars(ctx, "CME", "ES", 300, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRunFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	defer w.Close()

	inst := model.Instrument{Symbol: "NQ", Exchange: "CME", TF: 60}
	ch := make(chan model.Bar, 10)
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		ch <- testBar(t0.Add(time.Duration(i)*time.Minute), "1", "2", "0.5", "1.5")
	}
	close(ch)

	written := w.Run(context.Background(), inst, ch)
	assert.Equal(t, 7, written)

	last, err := w.GetLastTimestamp(inst)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(6*time.Minute).Unix(), last)
}
