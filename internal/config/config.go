package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level runtime configuration
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache" json:"cache"`
	Sandbox SandboxConfig `mapstructure:"sandbox" json:"sandbox"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
}

// CacheConfig configures the tool result cache
type CacheConfig struct {
	Dir             string `mapstructure:"dir" json:"dir"`
	TTLSeconds      int    `mapstructure:"ttl_seconds" json:"ttl_seconds"`
	CleanupSchedule string `mapstructure:"cleanup_schedule" json:"cleanup_schedule"`
}

// SandboxConfig configures code execution bounds
type SandboxConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	MaxToolCalls   int    `mapstructure:"max_tool_calls" json:"max_tool_calls"`
	MaxSteps       uint64 `mapstructure:"max_steps" json:"max_steps"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	File   string `mapstructure:"file" json:"file"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

// TTL returns the cache staleness bound as a duration
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Timeout returns the default execution timeout as a duration
func (c *SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Cache: CacheConfig{
			Dir:             filepath.Join(home, ".metatool", "cache"),
			TTLSeconds:      300,
			CleanupSchedule: "",
		},
		Sandbox: SandboxConfig{
			TimeoutSeconds: 30,
			MaxToolCalls:   50,
			MaxSteps:       10_000_000,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
