package cli

import (
	"github.com/harun/metatool/internal/config"
	"github.com/harun/metatool/pkg/coretools"
	"github.com/harun/metatool/pkg/dispatch"
	"github.com/harun/metatool/pkg/runtime"
	"github.com/harun/metatool/pkg/toolcache"
)

// buildRuntime assembles a runtime from the loaded configuration with
// the core tool servers registered.
func buildRuntime(cfg *config.Config) (*runtime.Runtime, error) {
	return runtime.New(runtime.Config{
		Servers: coretools.Servers(),
		Bind: func(cache *toolcache.Store) ([]dispatch.Binding, error) {
			return coretools.Bind(cache, coretools.Options{CacheTTL: cfg.Cache.TTL()})
		},
		CacheDir:        cfg.Cache.Dir,
		CacheTTL:        cfg.Cache.TTL(),
		DefaultTimeout:  cfg.Sandbox.Timeout(),
		MaxToolCalls:    cfg.Sandbox.MaxToolCalls,
		MaxSteps:        cfg.Sandbox.MaxSteps,
		CleanupSchedule: cfg.Cache.CleanupSchedule,
	})
}
