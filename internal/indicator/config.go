package indicator

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// MAType selects which averaging pair the cloud reads.
type MAType string

const (
	MASMA  MAType = "SMA"
	MAEMA  MAType = "EMA"
	MASMMA MAType = "SMMA"
)

// DriveSource selects the input of the adaptive filter cascade.
type DriveSource string

const (
	// DriveSmoothed feeds the cascade the Gaussian-smoothed close, not the
	// synthetic close. The synthetic close still builds the fractal range;
	// only the filter input differs. This is the default and matches how
	// the indicator has always been charted.
	DriveSmoothed  DriveSource = "smoothed"
	DriveSynthetic DriveSource = "synthetic" // synthetic close (o+h+l+gC)/4
)

// CandleSource selects which candle the exit rule tests for flat tops/bottoms.
type CandleSource string

const (
	CandleSynthetic CandleSource = "synthetic"
	CandleReal      CandleSource = "real"
)

// LaguerreConfig configures the Laguerre oscillator and its fractal-energy
// estimator.
type LaguerreConfig struct {
	UseFractalEnergy bool        `yaml:"use_fractal_energy" json:"use_fractal_energy" default:"true"`
	Alpha            float64     `yaml:"alpha" json:"alpha" default:"0.2" validate:"gt=0,lte=1"`
	NFE              int         `yaml:"nfe" json:"nfe" default:"8" validate:"gte=2"`
	GLength          int         `yaml:"g_length" json:"g_length" default:"13" validate:"gte=2"`
	BetaDev          float64     `yaml:"beta_dev" json:"beta_dev" default:"8" validate:"gt=0"`
	Drive            DriveSource `yaml:"drive" json:"drive" default:"smoothed" validate:"oneof=smoothed synthetic"`
	Overbought       float64     `yaml:"overbought" json:"overbought" default:"80" validate:"gte=0,lte=100"`
	Oversold         float64     `yaml:"oversold" json:"oversold" default:"20" validate:"gte=0,lte=100"`
}

// HeikenAshiConfig configures the synthetic candle generator.
type HeikenAshiConfig struct {
	// Days is the look-back in sessions used to find the seed bar; 0 seeds at bar 0.
	Days int `yaml:"days" json:"days" default:"20" validate:"gte=0"`
}

// CloudConfig configures the moving-average cloud.
type CloudConfig struct {
	MAType       MAType `yaml:"ma_type" json:"ma_type" default:"EMA" validate:"oneof=SMA EMA SMMA"`
	FastPeriod   int    `yaml:"fast_period" json:"fast_period" default:"9" validate:"gte=1"`
	SlowPeriod   int    `yaml:"slow_period" json:"slow_period" default:"21" validate:"gte=1"`
	SignalOffset int    `yaml:"signal_offset" json:"signal_offset" default:"1" validate:"gte=0"`
}

// SignalsMAConfig configures the price crossing a single moving average.
type SignalsMAConfig struct {
	MAType       MAType `yaml:"ma_type" json:"ma_type" default:"SMA" validate:"oneof=SMA EMA SMMA"`
	Period       int    `yaml:"period" json:"period" default:"9" validate:"gte=1"`
	SignalOffset int    `yaml:"signal_offset" json:"signal_offset" default:"1" validate:"gte=0"`
}

// ADXConfig configures the trend-strength dots. A value at or above a
// threshold is at least that strong.
type ADXConfig struct {
	Period          int     `yaml:"period" json:"period" default:"14" validate:"gte=1"`
	SmoothPeriod    int     `yaml:"smooth_period" json:"smooth_period" default:"14" validate:"gte=1"`
	MediumThreshold float64 `yaml:"medium_threshold" json:"medium_threshold" default:"15" validate:"gte=0,lte=100"`
	StrongThreshold float64 `yaml:"strong_threshold" json:"strong_threshold" default:"23" validate:"gte=0,lte=100"`
}

// SignalConfig configures the composite engine's signal placement.
type SignalConfig struct {
	EntryOffset int          `yaml:"entry_offset" json:"entry_offset" default:"4" validate:"gte=0"`
	ExitOffset  int          `yaml:"exit_offset" json:"exit_offset" default:"7" validate:"gte=0"`
	FlatCandle  CandleSource `yaml:"flat_candle" json:"flat_candle" default:"synthetic" validate:"oneof=synthetic real"`
}

// AlertConfig switches alert families on and off. The oscillator zone,
// cloud crossover and price crossing families are off unless enabled; the
// composite families are on.
type AlertConfig struct {
	Zones        bool `yaml:"zones" json:"zones" default:"false"`
	Crossovers   bool `yaml:"crossovers" json:"crossovers" default:"false"`
	PriceCrosses bool `yaml:"price_crosses" json:"price_crosses" default:"false"`
	Entries    bool `yaml:"entries" json:"entries" default:"true"`
	Reentries  bool `yaml:"reentries" json:"reentries" default:"true"`
	Exits      bool `yaml:"exits" json:"exits" default:"true"`
}

// Config is the full parameter set of an indicator graph. It is applied
// atomically: a new Config always means a full replay from bar 0.
type Config struct {
	Kind       Kind             `yaml:"kind" json:"kind" default:"composite" validate:"oneof=composite laguerre heikenashi cloud signalsma adxdots"`
	Laguerre   LaguerreConfig   `yaml:"laguerre" json:"laguerre"`
	HeikenAshi HeikenAshiConfig `yaml:"heiken_ashi" json:"heiken_ashi"`
	Cloud      CloudConfig      `yaml:"cloud" json:"cloud"`
	SignalsMA  SignalsMAConfig  `yaml:"signals_ma" json:"signals_ma"`
	ADX        ADXConfig        `yaml:"adx" json:"adx"`
	Signals    SignalConfig     `yaml:"signals" json:"signals"`
	Alerts     AlertConfig      `yaml:"alerts" json:"alerts"`
}

// Sentinel configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidLevel  = errors.New("oversold level must be below overbought level")
	ErrInvalidPeriod = errors.New("fast and slow periods must differ")
	ErrInvalidTrend  = errors.New("medium trend threshold must be below strong threshold")
)

// ValidationError reports which configuration field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var validate = validator.New()

// DefaultConfig returns the configuration with every field at its default.
func DefaultConfig() Config {
	var c Config
	if err := ApplyDefaults(&c); err != nil {
		panic(err)
	}
	return c
}

// ApplyDefaults fills zero-valued fields of c from their default tags.
func ApplyDefaults(c *Config) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return nil
}

// Validate checks field ranges and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{
				Field: fe.Namespace(),
				Err:   fmt.Errorf("%w: %v violates %q", ErrInvalidConfig, fe.Value(), fe.Tag()),
			}
		}
		return err
	}
	if c.Laguerre.Oversold >= c.Laguerre.Overbought {
		return &ValidationError{Field: "Config.Laguerre.Oversold", Err: ErrInvalidLevel}
	}
	if c.Cloud.FastPeriod == c.Cloud.SlowPeriod {
		return &ValidationError{Field: "Config.Cloud.FastPeriod", Err: ErrInvalidPeriod}
	}
	if c.ADX.MediumThreshold >= c.ADX.StrongThreshold {
		return &ValidationError{Field: "Config.ADX.MediumThreshold", Err: ErrInvalidTrend}
	}
	return nil
}
