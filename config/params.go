package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"trading-signalsv1/internal/indicator"
)

// LoadParams reads indicator parameters from a YAML file. An empty path
// yields the defaults.
func LoadParams(path string) (indicator.Config, error) {
	if path == "" {
		return indicator.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return indicator.Config{}, fmt.Errorf("read params %s: %w", path, err)
	}
	cfg, err := ParseParams(data)
	if err != nil {
		return indicator.Config{}, fmt.Errorf("params %s: %w", path, err)
	}
	return cfg, nil
}

// ParseParams decodes a parameter document (YAML, or JSON as a YAML subset).
// Defaults are applied before decoding so an explicit false or zero in the
// document is kept; unknown keys are rejected. The result is validated.
func ParseParams(data []byte) (indicator.Config, error) {
	cfg := indicator.DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return indicator.Config{}, fmt.Errorf("decode params: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return indicator.Config{}, err
	}
	return cfg, nil
}

// MarshalParams renders cfg as YAML.
func MarshalParams(cfg indicator.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
