// Package config loads the service configuration from the environment and
// the indicator parameters from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"trading-signalsv1/internal/markethours"
	"trading-signalsv1/internal/model"
)

// Config holds the service configuration loaded from environment variables.
type Config struct {
	// Storage and transport
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/bars.db" validate:"required"`
	RedisAddr     string `envconfig:"REDIS_ADDR"` // empty disables Redis
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`

	// Instrument
	Symbol   string `envconfig:"SYMBOL" default:"ES" validate:"required"`
	Exchange string `envconfig:"EXCHANGE" default:"CME" validate:"required"`
	TF       int    `envconfig:"TF" default:"60" validate:"gt=0"`
	TickSize string `envconfig:"TICK_SIZE" default:"0.25" validate:"required,numeric"`

	// Session calendar
	SessionTZ   string `envconfig:"SESSION_TZ" default:"UTC"`
	SessionOpen string `envconfig:"SESSION_OPEN" default:"00:00"`

	// Replay
	ReplaySpeed   float64 `envconfig:"REPLAY_SPEED" default:"0" validate:"gte=0"`
	IntrabarSteps int     `envconfig:"INTRABAR_STEPS" default:"1" validate:"gte=1,lte=100"`
	SourceTF      int     `envconfig:"SOURCE_TF" default:"0" validate:"gte=0"` // replay finer stored bars resampled into TF

	// Indicator parameters (YAML); empty uses built-in defaults
	ParamsFile string `envconfig:"PARAMS_FILE"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`

	// Notifications; empty disables the channel
	WebhookURL     string `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID" validate:"required_with=TelegramToken"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and that the tick size and session parse.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	tick, err := decimal.NewFromString(c.TickSize)
	if err != nil || !tick.IsPositive() {
		return fmt.Errorf("invalid config: TICK_SIZE %q must be a positive decimal", c.TickSize)
	}
	if _, err := c.Calendar(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Instrument returns the configured bar stream identity.
func (c *Config) Instrument() model.Instrument {
	tick, _ := decimal.NewFromString(c.TickSize)
	return model.Instrument{Symbol: c.Symbol, Exchange: c.Exchange, TF: c.TF, TickSize: tick}
}

// Calendar returns the session calendar.
func (c *Config) Calendar() (markethours.Calendar, error) {
	return markethours.Parse(c.SessionTZ, c.SessionOpen)
}
