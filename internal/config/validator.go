package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Validate checks that a configuration is internally consistent
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if cfg.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if cfg.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive, got %d", cfg.Cache.TTLSeconds)
	}

	if cfg.Sandbox.TimeoutSeconds <= 0 {
		return fmt.Errorf("sandbox.timeout_seconds must be positive, got %d", cfg.Sandbox.TimeoutSeconds)
	}
	if cfg.Sandbox.MaxToolCalls < 0 {
		return fmt.Errorf("sandbox.max_tool_calls cannot be negative, got %d", cfg.Sandbox.MaxToolCalls)
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level %q is not a valid level: %w", cfg.Log.Level, err)
	}

	return nil
}
