package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

// testFeed is an in-memory model.Feed. The last bar is the forming one.
type testFeed struct {
	bars     []model.Bar
	sessions map[int]bool
	tick     decimal.Decimal
}

func newTestFeed() *testFeed {
	return &testFeed{sessions: map[int]bool{}, tick: decimal.RequireFromString("0.25")}
}

func (f *testFeed) Bar(i int) model.Bar { return f.bars[i] }
func (f *testFeed) Count() int { return len(f.bars) }
func (f *testFeed) IsNewSession(i int) bool { return f.sessions[i] }
func (f *testFeed) TickSize() decimal.Decimal { return f.tick }
func (f *testFeed) Instrument() model.Instrument {
	return model.Instrument{Symbol: "ES", Exchange: "CME", TF: 60, TickSize: f.tick}
}

var testEpoch = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func ohlc(o, h, l, c float64) model.Bar {
	return model.Bar{
		Open:   decimal.NewFromFloat(o),
		High:   decimal.NewFromFloat(h),
		Low:    decimal.NewFromFloat(l),
		Close:  decimal.NewFromFloat(c),
		Volume: decimal.NewFromInt(100),
	}
}

func (f *testFeed) add(b model.Bar) {
	b.Index = len(f.bars)
	b.TS = testEpoch.Add(time.Duration(b.Index) * time.Minute)
	f.bars = append(f.bars, b)
}

// replace overwrites the forming bar in place.
func (f *testFeed) replace(b model.Bar) {
	last := len(f.bars) - 1
	b.Index = last
	b.TS = f.bars[last].TS
	f.bars[last] = b
}

// walkBars is a deterministic wavy OHLC series with real bodies and wicks.
func walkBars(n int) []model.Bar {
	out := make([]model.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		step := 1.5*math.Sin(float64(i)/3.0) + 0.8*math.Cos(float64(i)/7.0)
		o := price
		c := price + step
		h := math.Max(o, c) + 0.5 + 0.25*float64(i%3)
		l := math.Min(o, c) - 0.5 - 0.25*float64(i%2)
		out[i] = ohlc(round2(o), round2(h), round2(l), round2(c))
		price = c
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func feedOf(bars []model.Bar) *testFeed {
	f := newTestFeed()
	for _, b := range bars {
		f.add(b)
	}
	return f
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}
