package indicator

import (
	"fmt"
	"testing"

	"github.com/markcheno/go-talib"

	"trading-signalsv1/internal/model"
)

func TestADX_MatchesTalib(t *testing.T) {
	bars := walkBars(400)
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		c := b.Candle()
		high[i], low[i], closes[i] = c.High, c.Low, c.Close
	}

	cfg := ADXConfig{Period: 14, SmoothPeriod: 14, MediumThreshold: 15, StrongThreshold: 23}
	feed := feedOf(bars)
	a := NewADXDots("adxdots", feed, cfg)
	for bar := 0; bar < feed.Count(); bar++ {
		a.Compute(bar)
	}

	if _, ok := a.Value(2*cfg.Period - 2); ok {
		t.Error("ADX defined before both smoothings filled")
	}
	if _, ok := a.Value(2*cfg.Period - 1); !ok {
		t.Error("ADX undefined once both smoothings filled")
	}

	// Seeding differs from talib's; the gap decays geometrically.
	want := talib.Adx(high, low, closes, cfg.Period)
	for bar := 300; bar < len(bars); bar++ {
		got, ok := a.Value(bar)
		if !ok {
			t.Fatalf("bar %d undefined", bar)
		}
		assertClose(t, fmt.Sprintf("adx[%d]", bar), got, want[bar], 1e-6)
	}

	wantPlus := talib.PlusDI(high, low, closes, cfg.Period)
	v, _ := a.Read("plus_di", 399)
	assertClose(t, "+di[399]", v.Scalar, wantPlus[399], 1e-6)
}

func TestADX_Strength(t *testing.T) {
	a := NewADXDots("adxdots", newTestFeed(), DefaultConfig().ADX)
	cases := []struct {
		adx  float64
		want model.ColorTag
	}{
		{0, model.ColorWeak},
		{14.99, model.ColorWeak},
		{15, model.ColorMedium},
		{22.99, model.ColorMedium},
		{23, model.ColorStrong},
		{80, model.ColorStrong},
	}
	for _, tc := range cases {
		if got := a.strength(tc.adx); got != tc.want {
			t.Errorf("strength(%v) = %s, want %s", tc.adx, got, tc.want)
		}
	}
}

func TestADX_FlatFeedIsWeak(t *testing.T) {
	bars := make([]model.Bar, 40)
	for i := range bars {
		bars[i] = ohlc(50, 50, 50, 50)
	}
	feed := feedOf(bars)
	a := NewADXDots("adxdots", feed, ADXConfig{Period: 5, SmoothPeriod: 5, MediumThreshold: 15, StrongThreshold: 23})
	for bar := 0; bar < feed.Count(); bar++ {
		a.Compute(bar)
	}
	v, ok := a.Read("dots", 30)
	if !ok || v.Color != model.ColorWeak {
		t.Errorf("flat dots = %+v", v)
	}
	if adx, _ := a.Value(30); adx != 0 {
		t.Errorf("flat adx = %v", adx)
	}
}

func TestADX_ResetReplaysIdentically(t *testing.T) {
	feed := feedOf(walkBars(100))
	a := NewADXDots("adxdots", feed, DefaultConfig().ADX)
	for bar := 0; bar < feed.Count(); bar++ {
		a.Compute(bar)
	}
	before, _ := a.Value(98)
	a.Reset()
	if _, ok := a.Value(98); ok {
		t.Fatal("value survived reset")
	}
	for bar := 0; bar < feed.Count(); bar++ {
		a.Compute(bar)
	}
	after, _ := a.Value(98)
	if after != before {
		t.Errorf("after reset %v, before %v", after, before)
	}
}
