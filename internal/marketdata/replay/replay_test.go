package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
)

type memReader struct {
	bars []model.Bar
	err  error
}

func (m *memReader) ReadBars(_ context.Context, _, _ string, _ int, afterTS int64) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range m.bars {
		if b.TS.Unix() > afterTS {
			out = append(out, b)
		}
	}
	return out, m.err
}

func (m *memReader) Close() error { return nil }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func storedBars(n int) []model.Bar {
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	out := make([]model.Bar, n)
	for i := range out {
		out[i] = model.Bar{Index: i, TS: t0.Add(time.Duration(i) * time.Minute),
			Open: dec("100"), High: dec("104"), Low: dec("99"), Close: dec("102"), Volume: dec("40")}
	}
	return out
}

func TestSteps(t *testing.T) {
	b := storedBars(1)[0]
	ups := Steps(b, 4)
	if len(ups) != 4 {
		t.Fatalf("len = %d", len(ups))
	}
	wantClose := []string{"100.5", "101", "101.5", "102"}
	for i, u := range ups {
		if !u.Bar.Close.Equal(dec(wantClose[i])) {
			t.Errorf("step %d close = %s, want %s", i, u.Bar.Close, wantClose[i])
		}
		if u.Closed != (i == 3) {
			t.Errorf("step %d closed = %v", i, u.Closed)
		}
		if u.Bar.High.GreaterThan(b.High) || u.Bar.Low.LessThan(b.Low) {
			t.Errorf("step %d leaves the final range: %+v", i, u.Bar)
		}
	}
	if !ups[1].Bar.Volume.Equal(dec("20")) {
		t.Errorf("volume = %s", ups[1].Bar.Volume)
	}
	if got := Steps(b, 0); len(got) != 1 || !got[0].Closed {
		t.Errorf("Steps(b,0) = %+v", got)
	}
}

func TestRun_EmitsInOrder(t *testing.T) {
	r := New(&memReader{bars: storedBars(5)})
	inst := model.Instrument{Symbol: "ES", Exchange: "CME", TF: 60}

	var got []model.BarUpdate
	n, err := r.Run(context.Background(), inst, Options{IntrabarSteps: 2}, func(u model.BarUpdate) error {
		got = append(got, u)
		return nil
	})
	if err != nil || n != 5 {
		t.Fatalf("run = %d, %v", n, err)
	}
	if len(got) != 10 {
		t.Fatalf("updates = %d", len(got))
	}
	for i, u := range got {
		if u.Bar.Index != i/2 || u.Closed != (i%2 == 1) {
			t.Errorf("update %d = index %d closed %v", i, u.Bar.Index, u.Closed)
		}
	}
}

func TestRun_ResamplesSourceTF(t *testing.T) {
	r := New(&memReader{bars: storedBars(5)})
	inst := model.Instrument{Symbol: "ES", Exchange: "CME", TF: 120}

	var got []model.BarUpdate
	n, err := r.Run(context.Background(), inst, Options{SourceTF: 60, IntrabarSteps: 4, Calendar: markethours.Calendar{Loc: time.UTC}},
		func(u model.BarUpdate) error {
			got = append(got, u)
			return nil
		})
	if err != nil || n != 3 {
		t.Fatalf("run = %d, %v", n, err)
	}

	// forming, forming, closed+forming, forming, closed+forming, closed
	wantClosed := []bool{false, false, true, false, false, true, false, true}
	if len(got) != len(wantClosed) {
		t.Fatalf("updates = %d, want %d", len(got), len(wantClosed))
	}
	for i, u := range got {
		if u.Closed != wantClosed[i] {
			t.Errorf("update %d closed = %v", i, u.Closed)
		}
	}
	if !got[2].Bar.Volume.Equal(dec("80")) || got[2].Bar.Index != 0 {
		t.Errorf("first resampled bar = %+v", got[2].Bar)
	}
	if got[7].Bar.Index != 2 || !got[7].Bar.TS.Equal(storedBars(5)[4].TS) {
		t.Errorf("last resampled bar = %+v", got[7].Bar)
	}
}

func TestRun_FromTSAndErrors(t *testing.T) {
	bars := storedBars(5)
	r := New(&memReader{bars: bars})
	inst := model.Instrument{Symbol: "ES", Exchange: "CME", TF: 60}

	n, err := r.Run(context.Background(), inst, Options{FromTS: bars[2].TS.Unix()}, func(model.BarUpdate) error { return nil })
	if err != nil || n != 2 {
		t.Errorf("from ts: n=%d err=%v", n, err)
	}

	boom := errors.New("boom")
	n, err = r.Run(context.Background(), inst, Options{}, func(model.BarUpdate) error { return boom })
	if !errors.Is(err, boom) || n != 0 {
		t.Errorf("emit failure: n=%d err=%v", n, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, inst, Options{}, func(model.BarUpdate) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err=%v", err)
	}

	empty := New(&memReader{})
	if n, err := empty.Run(context.Background(), inst, Options{}, nil); n != 0 || err != nil {
		t.Errorf("empty store: n=%d err=%v", n, err)
	}
}
