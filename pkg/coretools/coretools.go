// Package coretools bundles a small set of local tool modules used by
// the CLI and by integration tests. Each tool implements the uniform
// handler contract; real deployments register their own servers the same
// way.
package coretools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harun/metatool/pkg/catalog"
	"github.com/harun/metatool/pkg/dispatch"
	"github.com/harun/metatool/pkg/toolcache"
)

// Options configures core tool registration.
type Options struct {
	// CacheTTL is the staleness bound for cache-wrapped tools.
	CacheTTL time.Duration
}

// Servers returns the catalog entries for the core tool modules.
func Servers() []catalog.ServerDef {
	return []catalog.ServerDef{
		{
			Name:        "clock",
			Description: "Wall-clock time operations.",
			Tools: []catalog.ToolDef{
				{
					Name:        "now",
					Description: "Return the current time in a timezone.",
					Parameters: []catalog.Param{
						{Name: "timezone", Type: "string", Description: "IANA timezone name", Required: false, Default: "UTC"},
					},
					Returns: "object with iso, unix, and timezone fields",
				},
				{
					Name:        "sleep",
					Description: "Pause for a number of milliseconds, bounded by the execution deadline.",
					Parameters: []catalog.Param{
						{Name: "ms", Type: "number", Description: "Milliseconds to sleep", Required: true},
					},
					Returns: "number of milliseconds actually slept",
				},
			},
		},
		{
			Name:        "text",
			Description: "Plain text transformations.",
			Tools: []catalog.ToolDef{
				{
					Name:        "echo",
					Description: "Return the input text unchanged.",
					Parameters: []catalog.Param{
						{Name: "text", Type: "string", Description: "Text to echo", Required: true},
					},
					Returns: "the input string",
				},
				{
					Name:        "upper",
					Description: "Uppercase the input text.",
					Parameters: []catalog.Param{
						{Name: "text", Type: "string", Description: "Text to transform", Required: true},
					},
					Returns: "the uppercased string",
				},
				{
					Name:        "word_count",
					Description: "Count words in the input text.",
					Parameters: []catalog.Param{
						{Name: "text", Type: "string", Description: "Text to count", Required: true},
					},
					Returns: "object with words and chars fields",
				},
			},
		},
	}
}

// Bind attaches handlers for every core tool. clock/now is cache-wrapped
// on its timezone argument to demonstrate the memoization path.
func Bind(cache *toolcache.Store, opts Options) ([]dispatch.Binding, error) {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	now, err := cache.Wrap("clock_now", clockNow, toolcache.Options{
		KeyParam: "timezone",
		TTL:      ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wrap clock/now: %w", err)
	}

	return []dispatch.Binding{
		{Server: "clock", Tool: "now", Handler: now},
		{Server: "clock", Tool: "sleep", Handler: clockSleep},
		{Server: "text", Tool: "echo", Handler: textEcho},
		{Server: "text", Tool: "upper", Handler: textUpper},
		{Server: "text", Tool: "word_count", Handler: textWordCount},
	}, nil
}

func clockNow(_ context.Context, args map[string]interface{}) (interface{}, error) {
	zone := "UTC"
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		zone = tz
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", zone)
	}
	now := time.Now().In(loc)
	return map[string]interface{}{
		"iso":      now.Format(time.RFC3339),
		"unix":     now.Unix(),
		"timezone": zone,
	}, nil
}

func clockSleep(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ms, ok := args["ms"].(float64)
	if !ok {
		if n, isInt := args["ms"].(int64); isInt {
			ms = float64(n)
			ok = true
		}
	}
	if !ok || ms < 0 {
		return nil, fmt.Errorf("ms must be a non-negative number")
	}

	start := time.Now()
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return time.Since(start).Milliseconds(), nil
}

func textEcho(_ context.Context, args map[string]interface{}) (interface{}, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text is required")
	}
	return text, nil
}

func textUpper(_ context.Context, args map[string]interface{}) (interface{}, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text is required")
	}
	return strings.ToUpper(text), nil
}

func textWordCount(_ context.Context, args map[string]interface{}) (interface{}, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text is required")
	}
	return map[string]interface{}{
		"words": int64(len(strings.Fields(text))),
		"chars": int64(len(text)),
	}, nil
}
