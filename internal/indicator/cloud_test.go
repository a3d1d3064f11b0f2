package indicator

import (
	"fmt"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/model"
)

func TestClassify_Hysteresis(t *testing.T) {
	fast := []float64{1, 2, 1, 2}
	slow := []float64{1.5, 1.5, 1.5, 1.5}
	wantBull := []bool{false, true, true, true}
	wantBear := []bool{true, false, false, false}

	for i := range fast {
		var pf, ps float64
		if i > 0 {
			pf, ps = fast[i-1], slow[i-1]
		}
		bull, bear := classify(fast[i], slow[i], pf, ps, i > 0)
		if bull != wantBull[i] || bear != wantBear[i] {
			t.Errorf("bar %d: bullish=%v bearish=%v, want %v/%v", i, bull, bear, wantBull[i], wantBear[i])
		}
	}
}

func TestClassify_EqualityWithoutHistory(t *testing.T) {
	bull, bear := classify(2, 2, 0, 0, false)
	if !bull || bear {
		t.Errorf("equal averages: bullish=%v bearish=%v, want true/false", bull, bear)
	}
}

func TestCloudDot(t *testing.T) {
	if cloudDot(2, 1) != model.ColorBullish || cloudDot(1, 2) != model.ColorBearish || cloudDot(1, 1) != model.ColorNone {
		t.Error("cloud dot colours do not follow the strict ordering")
	}
}

func TestCloud_MatchesTalibAndCrossovers(t *testing.T) {
	bars := walkBars(150)
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
	}

	for _, typ := range []MAType{MASMA, MAEMA} {
		cfg := CloudConfig{MAType: typ, FastPeriod: 3, SlowPeriod: 8, SignalOffset: 1}
		feed := feedOf(bars)
		cloud := NewCloud("cloud", feed, cfg, false)
		for bar := 0; bar < feed.Count(); bar++ {
			cloud.Compute(bar)
		}

		var wantFast, wantSlow []float64
		if typ == MASMA {
			wantFast, wantSlow = talib.Sma(closes, 3), talib.Sma(closes, 8)
		} else {
			wantFast, wantSlow = talib.Ema(closes, 3), talib.Ema(closes, 8)
		}

		crossings := 0
		for bar := 0; bar < feed.Count(); bar++ {
			f, okF := cloud.Fast(bar)
			s, okS := cloud.Slow(bar)
			if bar < 7 {
				if okS {
					t.Errorf("%s bar %d: slow defined during warm-up", typ, bar)
				}
				continue
			}
			if !okF || !okS {
				t.Fatalf("%s bar %d: averages undefined", typ, bar)
			}
			label := fmt.Sprintf("%s bar %d", typ, bar)
			assertClose(t, label+" fast", f, wantFast[bar], 1e-9)
			assertClose(t, label+" slow", s, wantSlow[bar], 1e-9)

			pf, okPF := cloud.Fast(bar - 1)
			ps, okPS := cloud.Slow(bar - 1)
			wantBuy := okPF && okPS && f > s && pf <= ps
			wantSell := okPF && okPS && f < s && pf >= ps

			sigs := cloud.SignalsAt(bar)
			gotBuy, gotSell := false, false
			b := feed.Bar(bar)
			for _, sig := range sigs {
				switch sig.Kind {
				case model.SignalBuy:
					gotBuy = true
					if want := b.Low.Sub(feed.tick); !sig.Price.Equal(want) {
						t.Errorf("%s buy price %s, want %s", label, sig.Price, want)
					}
				case model.SignalSell:
					gotSell = true
					if want := b.High.Add(feed.tick); !sig.Price.Equal(want) {
						t.Errorf("%s sell price %s, want %s", label, sig.Price, want)
					}
				}
			}
			if gotBuy != wantBuy || gotSell != wantSell {
				t.Errorf("%s: buy=%v sell=%v, want %v/%v", label, gotBuy, gotSell, wantBuy, wantSell)
			}
			if gotBuy || gotSell {
				crossings++
			}
		}
		if crossings == 0 {
			t.Errorf("%s: wavy series produced no crossovers", typ)
		}
	}
}

func TestCloud_FormingBarDoesNotCommit(t *testing.T) {
	bars := walkBars(20)
	feed := feedOf(bars[:10])
	cloud := NewCloud("cloud", feed, CloudConfig{MAType: MAEMA, FastPeriod: 3, SlowPeriod: 5}, false)
	for bar := 0; bar < feed.Count(); bar++ {
		cloud.Compute(bar)
	}

	// Revise the forming bar several times; only the last revision counts.
	for _, c := range []float64{150, 50, 101} {
		feed.replace(ohlc(c, c+1, c-1, c))
		cloud.Compute(9)
	}
	gotFast, _ := cloud.Fast(9)

	ref := feedOf(bars[:9])
	ref.add(ohlc(101, 102, 100, 101))
	want := NewCloud("cloud", ref, CloudConfig{MAType: MAEMA, FastPeriod: 3, SlowPeriod: 5}, false)
	for bar := 0; bar < ref.Count(); bar++ {
		want.Compute(bar)
	}
	wantFast, _ := want.Fast(9)
	if gotFast != wantFast {
		t.Errorf("forming fast = %v, want %v", gotFast, wantFast)
	}
}

func TestCloud_WarmupForming(t *testing.T) {
	// Two closed bars plus a forming one complete an SMA(3).
	feed := feedOf([]model.Bar{ohlc(1, 1, 1, 1), ohlc(2, 2, 2, 2), ohlc(3, 3, 3, 3)})
	cloud := NewCloud("cloud", feed, CloudConfig{MAType: MASMA, FastPeriod: 2, SlowPeriod: 3}, false)
	for bar := 0; bar < 3; bar++ {
		cloud.Compute(bar)
	}
	s, ok := cloud.Slow(2)
	if !ok {
		t.Fatal("forming bar completing the window should define the slow average")
	}
	assertClose(t, "slow", s, 2, 1e-12)

	// The forming value must not have been folded in.
	feed.replace(ohlc(6, 6, 6, 6))
	cloud.Compute(2)
	s, _ = cloud.Slow(2)
	assertClose(t, "slow after revision", s, 3, 1e-12)
}

func TestCloud_AlertMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = KindCloud
	cfg.Cloud = CloudConfig{MAType: MASMA, FastPeriod: 2, SlowPeriod: 3, SignalOffset: 2}
	cfg.Alerts.Crossovers = true

	// Falling then rising closes force one bullish crossover.
	closes := []float64{10, 9, 8, 7, 6, 8, 10, 12, 13}
	feed := newTestFeed()
	eng, err := NewEngine(feed, cfg)
	if err != nil {
		t.Fatal(err)
	}
	var msgs []string
	var signals []model.Signal
	for _, c := range closes {
		feed.add(ohlc(c, c+0.5, c-0.5, c))
		res := eng.Update()
		signals = append(signals, res.Signals...)
		for _, a := range res.Alerts {
			msgs = append(msgs, a.Message)
		}
	}
	if len(msgs) != 1 || msgs[0] != "BUY SIGNAL: SMA Cloud turned bullish" {
		t.Fatalf("alerts = %q", msgs)
	}
	if len(signals) != 1 || signals[0].Kind != model.SignalBuy {
		t.Fatalf("signals = %+v", signals)
	}
	b := feed.Bar(signals[0].Bar)
	want := b.Low.Sub(decimal.RequireFromString("0.5"))
	if !signals[0].Price.Equal(want) {
		t.Errorf("buy price %s, want %s", signals[0].Price, want)
	}
}
