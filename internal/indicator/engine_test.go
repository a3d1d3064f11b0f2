package indicator

import (
	"errors"
	"reflect"
	"testing"

	"trading-signalsv1/internal/model"
)

// growIntrabar appends bars one at a time, revising each forming bar twice
// before its final shape arrives, and updates the engine after every step.
// It returns the signals emitted per closed bar.
func growIntrabar(t *testing.T, feed *testFeed, eng *Engine, bars []model.Bar) map[int][]model.Signal {
	t.Helper()
	emitted := map[int][]model.Signal{}
	record := func(res Result) {
		for _, s := range res.Signals {
			if s.Bar != res.Closed {
				t.Fatalf("signal for bar %d emitted while closing %d", s.Bar, res.Closed)
			}
			emitted[s.Bar] = append(emitted[s.Bar], s)
		}
	}
	for _, b := range bars {
		o := b.Open.InexactFloat64()
		feed.add(ohlc(o, o, o, o))
		record(eng.Update())
		mid := b.Close.InexactFloat64()
		feed.replace(ohlc(o, max(o, mid)+3, min(o, mid)-3, mid))
		record(eng.Update())
		feed.replace(b)
		record(eng.Update())
	}
	return emitted
}

func TestEngine_ReplayInvariant(t *testing.T) {
	bars := walkBars(160)
	for _, kind := range Kinds() {
		cfg := compositeConfig()
		cfg.Kind = kind
		cfg.Laguerre.UseFractalEnergy = kind != KindLaguerre

		full := feedOf(bars)
		oneShot, err := NewEngine(full, cfg)
		if err != nil {
			t.Fatal(err)
		}
		oneShot.Update()

		grown := newTestFeed()
		stepped, err := NewEngine(grown, cfg)
		if err != nil {
			t.Fatal(err)
		}
		emitted := growIntrabar(t, grown, stepped, bars)

		for bar := 0; bar < len(bars); bar++ {
			want := oneShot.Values(bar)
			got := stepped.Values(bar)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("%s bar %d: stepped %v, one-shot %v", kind, bar, got, want)
			}
		}

		// No-repaint: what was emitted when a bar closed is what the bar holds.
		for bar := 0; bar < len(bars)-1; bar++ {
			final := oneShot.SignalsAt(bar)
			if len(final) != len(emitted[bar]) {
				t.Fatalf("%s bar %d: emitted %v, final %v", kind, bar, emitted[bar], final)
			}
			for i := range final {
				if final[i].Kind != emitted[bar][i].Kind || !final[i].Price.Equal(emitted[bar][i].Price) {
					t.Errorf("%s bar %d: emitted %+v, final %+v", kind, bar, emitted[bar][i], final[i])
				}
			}
		}
	}
}

func TestEngine_RepeatedUpdateIsIdempotent(t *testing.T) {
	feed := feedOf(walkBars(80))
	eng, err := NewEngine(feed, compositeConfig())
	if err != nil {
		t.Fatal(err)
	}
	first := eng.Update()
	if first.Closed != 78 || first.Forming != 79 || first.Bars != 80 {
		t.Fatalf("first update: %+v", first)
	}
	before := eng.Values(78)

	for i := 0; i < 3; i++ {
		res := eng.Update()
		if res.Bars != 1 {
			t.Errorf("repeat %d recomputed %d bars, want 1", i, res.Bars)
		}
		if len(res.Signals) != 0 || len(res.Alerts) != 0 {
			t.Errorf("repeat %d re-emitted %+v", i, res)
		}
	}
	if !reflect.DeepEqual(eng.Values(78), before) {
		t.Error("closed bar changed after repeated updates")
	}
}

func TestEngine_EmptyFeed(t *testing.T) {
	eng, err := NewEngine(newTestFeed(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	res := eng.Update()
	if res.Closed != -1 || res.Forming != -1 || res.Bars != 0 || res.Signals != nil || res.Alerts != nil {
		t.Errorf("empty feed update: %+v", res)
	}
}

func TestEngine_ApplyReplaysAndDoesNotReannounce(t *testing.T) {
	bars := walkBars(120)
	feed := newTestFeed()
	cfg := compositeConfig()
	eng, err := NewEngine(feed, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bars {
		feed.add(b)
		eng.Update()
	}

	changed := cfg
	changed.Cloud.MAType = MASMA
	changed.Signals.EntryOffset = 10
	if err := eng.Apply(changed); err != nil {
		t.Fatal(err)
	}
	if eng.Replays() != 1 {
		t.Errorf("replays = %d", eng.Replays())
	}
	if eng.Config().Cloud.MAType != MASMA {
		t.Error("config not swapped")
	}

	res := eng.Update()
	if len(res.Signals) != 0 || len(res.Alerts) != 0 {
		t.Errorf("already announced bar re-emitted after apply: %+v", res)
	}

	// The replayed state equals a fresh engine built with the new config.
	fresh, err := NewEngine(feed, changed)
	if err != nil {
		t.Fatal(err)
	}
	fresh.Update()
	for bar := 0; bar < feed.Count(); bar++ {
		if !reflect.DeepEqual(eng.Values(bar), fresh.Values(bar)) {
			t.Fatalf("bar %d differs from a fresh replay", bar)
		}
	}
}

func TestEngine_ApplyRejectsInvalidConfig(t *testing.T) {
	feed := feedOf(walkBars(10))
	eng, err := NewEngine(feed, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	bad := DefaultConfig()
	bad.Laguerre.NFE = 1
	err = eng.Apply(bad)

	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Apply error = %v", err)
	}
	if eng.Config().Laguerre.NFE != 8 {
		t.Error("rejected config must not be applied")
	}
}

func TestEngine_ReadAndSeriesNames(t *testing.T) {
	feed := feedOf(walkBars(30))
	cfg := DefaultConfig()
	cfg.Kind = KindHeikenAshi
	cfg.HeikenAshi.Days = 0
	eng, err := NewEngine(feed, cfg)
	if err != nil {
		t.Fatal(err)
	}
	eng.Update()
	if got := eng.SeriesNames(); !reflect.DeepEqual(got, []string{"candle", "dots"}) {
		t.Errorf("series names = %v", got)
	}
	v, ok := eng.Read("candle", 0)
	b := feed.Bar(0)
	if !ok || *v.Candle != b.Candle() {
		t.Errorf("bar 0 candle = %+v", v)
	}
	if sigs := eng.SignalsAt(10); sigs != nil {
		t.Errorf("heiken ashi emits no signals, got %v", sigs)
	}
}

func sessionFeed(bars []model.Bar) *testFeed {
	f := feedOf(bars)
	for _, s := range []int{0, 20, 40} {
		f.sessions[s] = true
	}
	return f
}

func TestEngine_ReseedResolvesHistorySeed(t *testing.T) {
	bars := walkBars(60)
	for _, kind := range []Kind{KindHeikenAshi, KindComposite} {
		cfg := compositeConfig()
		cfg.Kind = kind
		cfg.HeikenAshi.Days = 2

		oneShot, err := NewEngine(sessionFeed(bars), cfg)
		if err != nil {
			t.Fatal(err)
		}
		oneShot.Update()

		grown := newTestFeed()
		grown.sessions = sessionFeed(nil).sessions
		stepped, err := NewEngine(grown, cfg)
		if err != nil {
			t.Fatal(err)
		}
		growIntrabar(t, grown, stepped, bars)
		stepped.Reseed(nil)

		if kind == KindHeikenAshi {
			if seed := stepped.root.(*HeikenAshi).Seed(); seed != 20 {
				t.Errorf("reseeded seed = %d, want 20", seed)
			}
			if _, ok := stepped.Read("candle", 19); ok {
				t.Error("bar before the seed carries a candle")
			}
		}
		for bar := 0; bar < len(bars); bar++ {
			if !reflect.DeepEqual(stepped.Values(bar), oneShot.Values(bar)) {
				t.Fatalf("%s bar %d: reseeded %v, one-shot %v", kind, bar, stepped.Values(bar), oneShot.Values(bar))
			}
		}

		// Reseed does not announce bars a second time.
		stepped.Reseed(func(res Result) { t.Errorf("%s: re-announced %+v", kind, res) })
	}
}

func TestEngine_ReseedAnnouncesInOrder(t *testing.T) {
	bars := walkBars(60)
	cfg := compositeConfig()
	cfg.HeikenAshi.Days = 2

	oneShot, err := NewEngine(sessionFeed(bars), cfg)
	if err != nil {
		t.Fatal(err)
	}
	oneShot.Update()

	eng, err := NewEngine(sessionFeed(bars), cfg)
	if err != nil {
		t.Fatal(err)
	}
	var closed []int
	eng.Reseed(func(res Result) {
		closed = append(closed, res.Closed)
		if res.Forming != res.Closed+1 {
			t.Errorf("closed %d reported with forming %d", res.Closed, res.Forming)
		}
		if want := oneShot.SignalsAt(res.Closed); !reflect.DeepEqual(res.Signals, want) {
			t.Errorf("bar %d: announced %v, want %v", res.Closed, res.Signals, want)
		}
	})
	if len(closed) != len(bars)-1 {
		t.Fatalf("announced %d bars, want %d", len(closed), len(bars)-1)
	}
	for i, c := range closed {
		if c != i {
			t.Fatalf("announcement %d is bar %d", i, c)
		}
	}

	// The frontier sits on the forming bar afterwards.
	if res := eng.Update(); res.Bars != 1 || res.Signals != nil {
		t.Errorf("update after reseed: %+v", res)
	}
}
