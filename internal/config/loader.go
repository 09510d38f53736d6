package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Env names read by Load.
const (
	envPrefix     = "AFFIRM_"
	envConfigPath = "AFFIRM_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if AFFIRM_CONFIG is set
//  3. env (prefix AFFIRM_), e.g. AFFIRM_DAILY_CAP=250
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// AFFIRM_QUEUE_SIZE -> queue_size. Underscores are kept to match the
	// flat koanf tags; nested maps (intervals, triggers) come from the file.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DailyCap < 0:
		return fmt.Errorf("%w: daily_cap must not be negative", ErrInvalidConfig)
	case c.RetryAttempts < 1:
		return fmt.Errorf("%w: retry_attempts must be at least 1", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	case c.EventQueueSize < c.WorkerCount:
		return fmt.Errorf("%w: queue_size must be at least worker_count", ErrInvalidConfig)
	case c.SessionRefreshMinutes < 1:
		return fmt.Errorf("%w: session_refresh_minutes must be at least 1", ErrInvalidConfig)
	case c.AudienceRefreshMinutes < 1:
		return fmt.Errorf("%w: audience_refresh_minutes must be at least 1", ErrInvalidConfig)
	case c.TimezoneOffsetMinutes < -14*60 || c.TimezoneOffsetMinutes > 14*60:
		return fmt.Errorf("%w: timezone_offset_minutes out of range", ErrInvalidConfig)
	}
	for mode, minutes := range c.Intervals {
		if minutes < 0 {
			return fmt.Errorf("%w: interval for %s must not be negative", ErrInvalidConfig, mode)
		}
	}
	return nil
}
