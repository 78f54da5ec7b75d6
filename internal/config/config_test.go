package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout())
	assert.Equal(t, 50, cfg.Sandbox.MaxToolCalls)
	assert.Equal(t, "info", cfg.Log.Level)

	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing cache dir", func(c *Config) { c.Cache.Dir = "" }, "cache.dir"},
		{"zero ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }, "ttl_seconds"},
		{"zero timeout", func(c *Config) { c.Sandbox.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"negative tool calls", func(c *Config) { c.Sandbox.MaxToolCalls = -1 }, "max_tool_calls"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Error(t, Validate(nil))
}

func TestLoader_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metatool.json")
	body := `{
  "cache": {"dir": "/tmp/mt-cache", "ttl_seconds": 60},
  "sandbox": {"timeout_seconds": 5, "max_tool_calls": 3},
  "log": {"level": "debug"}
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/mt-cache", cfg.Cache.Dir)
	assert.Equal(t, time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout())
	assert.Equal(t, 3, cfg.Sandbox.MaxToolCalls)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, uint64(10_000_000), cfg.Sandbox.MaxSteps)
}

func TestLoader_InvalidFileValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metatool.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cache": {"ttl_seconds": -1}}`), 0o644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("METATOOL_LOG_LEVEL", "warn")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metatool.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}
