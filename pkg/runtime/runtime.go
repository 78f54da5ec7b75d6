// Package runtime wires the catalog, cache, dispatcher, and sandbox into
// one explicitly constructed unit. Independent runtimes share no global
// state, so two instances (for example, under test) cannot interfere
// through a common registry or cache directory.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/metatool/pkg/catalog"
	"github.com/harun/metatool/pkg/dispatch"
	"github.com/harun/metatool/pkg/sandbox"
	"github.com/harun/metatool/pkg/toolcache"
)

// ErrConfiguration indicates an invalid or incomplete runtime configuration.
var ErrConfiguration = errors.New("runtime configuration error")

// Binder produces handler bindings once the cache store exists, so tool
// modules can cache-wrap the handlers they choose to.
type Binder func(cache *toolcache.Store) ([]dispatch.Binding, error)

// Config assembles a runtime.
type Config struct {
	// Servers is the static catalog. Required.
	Servers []catalog.ServerDef

	// Bind attaches handlers to every cataloged tool. Required.
	Bind Binder

	// CacheDir roots the TTL cache store. Required.
	CacheDir string

	// CacheTTL is the staleness bound used by stats and scheduled
	// cleanup. Required.
	CacheTTL time.Duration

	// DefaultTimeout bounds an execution when the caller passes none.
	DefaultTimeout time.Duration

	// MaxToolCalls limits tool invocations per execution. Zero means
	// unlimited.
	MaxToolCalls int

	// MaxSteps limits interpreter steps per execution. Zero means
	// unlimited.
	MaxSteps uint64

	// CleanupSchedule is an optional cron expression for the cache
	// janitor. Empty disables scheduled cleanup.
	CleanupSchedule string
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	var missing []string
	if len(c.Servers) == 0 {
		missing = append(missing, "Servers")
	}
	if c.Bind == nil {
		missing = append(missing, "Bind")
	}
	if c.CacheDir == "" {
		missing = append(missing, "CacheDir")
	}
	if c.CacheTTL <= 0 {
		missing = append(missing, "CacheTTL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %v", ErrConfiguration, missing)
	}
	return nil
}

// Runtime is the assembled execution and caching core.
type Runtime struct {
	Catalog    *catalog.Catalog
	Cache      *toolcache.Store
	Dispatcher *dispatch.Dispatcher
	Engine     *sandbox.Engine

	cacheTTL time.Duration
	janitor  *toolcache.Janitor
}

// New builds a runtime from the configuration. Construction fails on the
// first inconsistency: an invalid catalog, an unbound tool, or a cache
// store that cannot be opened.
func New(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cat, err := catalog.Build(cfg.Servers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cache, err := toolcache.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	bindings, err := cfg.Bind(cache)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	disp, err := dispatch.New(cat, bindings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	engine, err := sandbox.NewEngine(cat, disp, sandbox.Options{
		Timeout:      cfg.DefaultTimeout,
		MaxToolCalls: cfg.MaxToolCalls,
		MaxSteps:     cfg.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	rt := &Runtime{
		Catalog:    cat,
		Cache:      cache,
		Dispatcher: disp,
		Engine:     engine,
		cacheTTL:   cfg.CacheTTL,
	}

	if cfg.CleanupSchedule != "" {
		janitor, err := toolcache.NewJanitor(cache, cfg.CacheTTL, cfg.CleanupSchedule)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		janitor.Start()
		rt.janitor = janitor
	}

	log.Info().
		Int("servers", len(cfg.Servers)).
		Str("cacheDir", cfg.CacheDir).
		Msg("Runtime initialized")

	return rt, nil
}

// ExecuteCode runs orchestrator-supplied code in the sandbox. A zero
// timeout falls back to the runtime's default.
func (r *Runtime) ExecuteCode(ctx context.Context, code string, timeout time.Duration) sandbox.Report {
	return r.Engine.Execute(ctx, code, sandbox.Options{Timeout: timeout})
}

// CacheTTL returns the configured staleness bound.
func (r *Runtime) CacheTTL() time.Duration {
	return r.cacheTTL
}

// Close tears the runtime down. It stops the janitor if one is running.
func (r *Runtime) Close() error {
	if r.janitor != nil {
		r.janitor.Stop()
	}
	return nil
}
