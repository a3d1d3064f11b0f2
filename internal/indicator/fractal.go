package indicator

import (
	"math"

	"trading-signalsv1/internal/model"
)

// FractalEnergy estimates the adaptive Laguerre coefficient from the ratio
// of summed synthetic true range to the extreme range of a rolling window.
//
// OHLC are first smoothed with a 4-pole Gaussian low-pass filter. The smoothed
// series are defined from bar 0 with out-of-range history taken as 0; gamma
// is defined from bar nfe onward.
type FractalEnergy struct {
	feed   model.Feed
	nfe    int
	logNFE float64

	// Gaussian filter weights: a4·x + k1·g1 - k2·g2 + k3·g3 - k4·g4.
	a4, k1, k2, k3, k4 float64

	gO, gH, gL, gC Series[float64]
	synthetic      Series[model.Candle]
	gamma          Series[float64]
}

// NewFractalEnergy builds the estimator. nfe and gLength must be >= 2 and
// betaDev > 0; Config.Validate enforces this.
func NewFractalEnergy(feed model.Feed, nfe, gLength int, betaDev float64) *FractalEnergy {
	if nfe < 2 || gLength < 2 || betaDev <= 0 {
		panic("indicator: fractal energy needs nfe >= 2, gLength >= 2, betaDev > 0")
	}
	alpha := gaussianAlpha(gLength, betaDev)
	r := 1 - alpha
	return &FractalEnergy{
		feed:   feed,
		nfe:    nfe,
		logNFE: math.Log(float64(nfe)),
		a4:     math.Pow(alpha, 4),
		k1:     4 * r,
		k2:     6 * r * r,
		k3:     4 * r * r * r,
		k4:     r * r * r * r,
	}
}

// gaussianAlpha derives the low-pass coefficient from the filter period and
// the beta deviation shape parameter.
func gaussianAlpha(gLength int, betaDev float64) float64 {
	w := 2 * math.Pi / float64(gLength)
	beta := (1 - math.Cos(w)) / (math.Pow(1.414, 2/betaDev) - 1)
	return -beta + math.Sqrt(beta*beta+2*beta)
}

func (f *FractalEnergy) smooth(s *Series[float64], bar int, x float64) float64 {
	v := f.a4*x +
		f.k1*s.Get(bar-1) -
		f.k2*s.Get(bar-2) +
		f.k3*s.Get(bar-3) -
		f.k4*s.Get(bar-4)
	s.Set(bar, v)
	return v
}

// Compute evaluates bar.
func (f *FractalEnergy) Compute(bar int) {
	b := f.feed.Bar(bar)
	raw := b.Candle()

	gO := f.smooth(&f.gO, bar, raw.Open)
	gH := f.smooth(&f.gH, bar, raw.High)
	gL := f.smooth(&f.gL, bar, raw.Low)
	gC := f.smooth(&f.gC, bar, raw.Close)

	prevGC := f.gC.Get(bar - 1)
	o := (gO + prevGC) / 2
	h := math.Max(gH, prevGC)
	l := math.Min(gL, prevGC)
	f.synthetic.Set(bar, model.Candle{Open: o, High: h, Low: l, Close: (o + h + l + gC) / 4})

	if bar < f.nfe {
		f.gamma.Unset(bar)
		return
	}

	var congestion float64
	hi, lo := math.Inf(-1), math.Inf(1)
	for idx := bar - f.nfe + 1; idx <= bar; idx++ {
		c := f.synthetic.Get(idx)
		congestion += c.High - c.Low
		hi = math.Max(hi, f.gH.Get(idx))
		lo = math.Min(lo, f.gL.Get(idx))
	}
	f.gamma.Set(bar, f.coefficient(congestion, hi-lo))
}

// coefficient maps the congestion ratio to gamma. Degenerate inputs, where
// the logarithm is undefined, yield 1 so the cascade holds its prior state.
func (f *FractalEnergy) coefficient(congestion, extreme float64) float64 {
	if congestion <= 0 || extreme <= 0 {
		return 1
	}
	ratio := congestion / extreme
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 1
	}
	g := math.Log(ratio) / f.logNFE
	switch {
	case math.IsNaN(g) || math.IsInf(g, 0):
		return 1
	case g < 0:
		return 0
	case g > 1:
		return 1
	}
	return g
}

// Gamma returns the adaptive coefficient at bar.
func (f *FractalEnergy) Gamma(bar int) (float64, bool) { return f.gamma.At(bar) }

// SmoothedClose returns the Gaussian-smoothed close at bar.
func (f *FractalEnergy) SmoothedClose(bar int) (float64, bool) { return f.gC.At(bar) }

// Synthetic returns the synthetic bar built from the smoothed series.
func (f *FractalEnergy) Synthetic(bar int) (model.Candle, bool) { return f.synthetic.At(bar) }

// Reset clears all series.
func (f *FractalEnergy) Reset() {
	f.gO.Reset()
	f.gH.Reset()
	f.gL.Reset()
	f.gC.Reset()
	f.synthetic.Reset()
	f.gamma.Reset()
}
