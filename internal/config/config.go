// Package config holds the run configuration for the qscan pipeline.
// Settings come from an optional YAML file with environment overrides on
// top; the API key is deliberately not part of this file and travels only
// through the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"qscan/internal/qcloud"
)

// Config is the full pipeline configuration.
type Config struct {
	// Backend is the physical backend identifier, e.g. "origin_wukong".
	Backend string `yaml:"backend"`
	// Endpoint overrides the service gateway URL; empty selects production.
	Endpoint string `yaml:"endpoint"`

	// ProbeShots is the shot count per bit-order calibration circuit.
	ProbeShots int `yaml:"probe_shots"`
	// GroverIters is the fixed amplification count per search circuit.
	GroverIters int `yaml:"grover_iters"`
	// ProbsTopK bounds the per-record outcome list in the report.
	ProbsTopK int `yaml:"probs_top_k"`

	Execution ExecutionConfig `yaml:"execution"`
}

// ExecutionConfig mirrors the client-side timing and retry knobs. Durations
// are strings ("2s", "15m") so the file stays human-editable.
type ExecutionConfig struct {
	PollInterval     string `yaml:"poll_interval"`
	PollWindow       string `yaml:"poll_window"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryBackoffBase string `yaml:"retry_backoff_base"`
	RetryBackoffMax  string `yaml:"retry_backoff_max"`
	MaxDepth         int    `yaml:"max_depth"`
}

// Default returns the production parameters.
func Default() *Config {
	return &Config{
		Backend:     "origin_wukong",
		ProbeShots:  2000,
		GroverIters: 1,
		ProbsTopK:   16,
		Execution: ExecutionConfig{
			PollInterval:     "2s",
			PollWindow:       "15m",
			MaxRetries:       3,
			RetryBackoffBase: "1s",
			RetryBackoffMax:  "30s",
			MaxDepth:         500,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets QSCAN_* variables win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QSCAN_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("QSCAN_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("QSCAN_PROBE_SHOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProbeShots = n
		}
	}
	if v := os.Getenv("QSCAN_GROVER_ITERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GroverIters = n
		}
	}
	if v := os.Getenv("QSCAN_POLL_INTERVAL"); v != "" {
		c.Execution.PollInterval = v
	}
	if v := os.Getenv("QSCAN_POLL_WINDOW"); v != "" {
		c.Execution.PollWindow = v
	}
}

// Validate checks the parts that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend name required")
	}
	if c.GroverIters < 1 {
		return fmt.Errorf("grover_iters must be >= 1, got %d", c.GroverIters)
	}
	if c.ProbeShots < qcloud.MinShots || c.ProbeShots > qcloud.MaxShots {
		return fmt.Errorf("probe_shots %d outside [%d, %d]", c.ProbeShots, qcloud.MinShots, qcloud.MaxShots)
	}
	for name, v := range map[string]string{
		"poll_interval":      c.Execution.PollInterval,
		"poll_window":        c.Execution.PollWindow,
		"retry_backoff_base": c.Execution.RetryBackoffBase,
		"retry_backoff_max":  c.Execution.RetryBackoffMax,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

// ClientConfig converts the execution section into the client's view.
// Validate must have passed; unparsable durations fall back to defaults.
func (c *Config) ClientConfig() qcloud.ClientConfig {
	out := qcloud.DefaultClientConfig()
	if d, err := time.ParseDuration(c.Execution.PollInterval); err == nil {
		out.PollInterval = d
	}
	if d, err := time.ParseDuration(c.Execution.PollWindow); err == nil {
		out.PollWindow = d
	}
	if d, err := time.ParseDuration(c.Execution.RetryBackoffBase); err == nil {
		out.RetryBackoffBase = d
	}
	if d, err := time.ParseDuration(c.Execution.RetryBackoffMax); err == nil {
		out.RetryBackoffMax = d
	}
	out.MaxRetries = c.Execution.MaxRetries
	out.MaxDepth = c.Execution.MaxDepth
	return out
}
