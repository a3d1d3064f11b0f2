package indicator

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

// crossBars closes flat at 10, dips below a 3-bar SMA, then jumps back over it.
func crossBars() []model.Bar {
	closes := []float64{10, 10, 10, 9, 12, 12.5}
	out := make([]model.Bar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		out[i] = ohlc(prev, max(prev, c)+1, min(prev, c)-1, c)
		prev = c
	}
	return out
}

func runSignalsMA(feed *testFeed, s *SignalsMA) {
	for bar := 0; bar < feed.Count(); bar++ {
		s.Compute(bar)
	}
}

func TestSignalsMA_Crossings(t *testing.T) {
	feed := feedOf(crossBars())
	cfg := SignalsMAConfig{MAType: MASMA, Period: 3, SignalOffset: 1}
	s := NewSignalsMA("signalsma", feed, cfg, false)
	runSignalsMA(feed, s)

	if _, ok := s.Value(1); ok {
		t.Error("average defined before the period filled")
	}
	v, _ := s.Value(3)
	assertClose(t, "ma[3]", v, 29.0/3, 1e-12)

	for _, bar := range []int{0, 1, 2, 5} {
		if sigs := s.SignalsAt(bar); sigs != nil {
			t.Errorf("bar %d: unexpected %v", bar, sigs)
		}
	}

	sell := s.SignalsAt(3)
	if len(sell) != 1 || sell[0].Kind != model.SignalSell || !sell[0].Price.Equal(decimal.RequireFromString("11.25")) {
		t.Errorf("bar 3 = %+v, want sell at 11.25", sell)
	}
	buy := s.SignalsAt(4)
	if len(buy) != 1 || buy[0].Kind != model.SignalBuy || !buy[0].Price.Equal(decimal.RequireFromString("7.75")) {
		t.Errorf("bar 4 = %+v, want buy at 7.75", buy)
	}

	if alerts := s.Alerts(3); alerts != nil {
		t.Errorf("price-cross alerts are off, got %v", alerts)
	}
}

func TestSignalsMA_Alerts(t *testing.T) {
	feed := feedOf(crossBars())
	cfg := SignalsMAConfig{MAType: MASMA, Period: 3, SignalOffset: 1}
	s := NewSignalsMA("signalsma", feed, cfg, true)
	runSignalsMA(feed, s)

	got := s.Alerts(3)
	if len(got) != 1 || got[0].Message != "SELL SIGNAL: Price crossed and closed below the 3 SMA" || got[0].Color != model.ColorBearish {
		t.Fatalf("bar 3 alerts = %+v", got)
	}
	if again := s.Alerts(3); again != nil {
		t.Errorf("bar 3 alerted twice: %v", again)
	}
	got = s.Alerts(4)
	if len(got) != 1 || got[0].Message != "BUY SIGNAL: Price crossed and closed above the 3 SMA" {
		t.Errorf("bar 4 alerts = %+v", got)
	}
}

func TestSignalsMA_ResetReplaysIdentically(t *testing.T) {
	feed := feedOf(walkBars(120))
	cfg := DefaultConfig().SignalsMA
	cfg.MAType = MAEMA
	s := NewSignalsMA("signalsma", feed, cfg, false)
	runSignalsMA(feed, s)

	var before [][]model.Signal
	for bar := 0; bar < feed.Count(); bar++ {
		before = append(before, s.SignalsAt(bar))
	}
	s.Reset()
	if _, ok := s.Value(feed.Count() - 1); ok {
		t.Fatal("value survived reset")
	}
	runSignalsMA(feed, s)
	for bar := 0; bar < feed.Count(); bar++ {
		if !reflect.DeepEqual(s.SignalsAt(bar), before[bar]) {
			t.Fatalf("bar %d differs after reset", bar)
		}
	}
}
