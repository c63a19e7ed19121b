// Package config loads swarmdeck's YAML configuration with environment
// overrides for credentials. Everything has a default safe for local use, so
// a missing file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/swarmdeck/swarmdeck/core"
	"github.com/swarmdeck/swarmdeck/dispatch"
	"github.com/swarmdeck/swarmdeck/pricing"
)

// Config carries the tunables of the orchestration core and the credentials
// of the vendor executors.
type Config struct {
	// DefaultModel is the model label used when a session is created
	// without one. Free text; normalized to a tier downstream.
	DefaultModel string `yaml:"default_model"`

	// MaxConcurrentWorkers caps in-flight workers across sessions.
	// 0 means unlimited.
	MaxConcurrentWorkers int `yaml:"max_concurrent_workers"`

	// WorkerEventBuffer is the per-subscriber buffer of a worker stream.
	WorkerEventBuffer int `yaml:"worker_event_buffer"`

	// StatusEventBuffer is the per-subscriber buffer of a status stream.
	StatusEventBuffer int `yaml:"status_event_buffer"`

	// Pricing overrides the built-in per-tier price table, keyed by model
	// label ("opus", "claude-3-5-haiku-latest", ...). Tiers not listed keep
	// their defaults.
	Pricing map[string]pricing.Rate `yaml:"pricing"`

	// AnthropicAPIKey and OpenAIAPIKey feed the vendor executors. The
	// ANTHROPIC_API_KEY / OPENAI_API_KEY environment variables take
	// precedence over file values.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		DefaultModel:         "sonnet",
		MaxConcurrentWorkers: 10,
		WorkerEventBuffer:    256,
		StatusEventBuffer:    64,
	}
}

// Load reads a YAML config file on top of the defaults and applies
// environment overrides. An empty path, or a path that does not exist,
// yields the defaults (with env overrides) rather than an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
}

// PricingTable merges the config's per-label rate overrides over the built-in
// price list. Labels normalize to tiers the same way session model labels do,
// so both "opus" and a full API model id address the opus row.
func (c Config) PricingTable() pricing.Table {
	table := pricing.DefaultTable()
	for label, rate := range c.Pricing {
		table[core.ModelFromLabel(label)] = rate
	}
	return table
}

// BrokerOptions applies the configured stream buffer sizes. Its signature
// matches dispatch.NewBroker's option functions:
//
//	broker := dispatch.NewBroker(cfg.BrokerOptions)
//
// Zero or negative values keep the broker defaults.
func (c Config) BrokerOptions(o *dispatch.Options) {
	if c.WorkerEventBuffer > 0 {
		o.WorkerBuffer = c.WorkerEventBuffer
	}
	if c.StatusEventBuffer > 0 {
		o.StatusBuffer = c.StatusEventBuffer
	}
}
