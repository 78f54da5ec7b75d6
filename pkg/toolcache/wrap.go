package toolcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/metatool/pkg/dispatch"
)

// BypassKey is the reserved argument that forces a live call. The flag is
// forwarded to the wrapped handler untouched; the fresh result is still
// written back to the cache.
const BypassKey = "fresh"

// Options configures one cache-wrapped handler.
type Options struct {
	// KeyParam names the argument whose value identifies the call.
	// The derived key is "<name>/<sanitized value>", which keeps the
	// store inspectable.
	KeyParam string

	// TTL is the maximum age a record is served at. Required.
	TTL time.Duration

	// HashFallback enables whole-argument hashing when KeyParam is empty
	// or absent from a call. Hashed keys are opaque, so this is meant for
	// development convenience, never as the default.
	HashFallback bool
}

// Wrap decorates a handler with TTL memoization under the given function
// name. Only successful results are persisted; failures self-heal on the
// next call. A wrapper with no identity parameter and no hash fallback
// has no usable key and is rejected as a configuration error.
func (s *Store) Wrap(name string, handler dispatch.Handler, opts Options) (dispatch.Handler, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: wrapped function name is required", ErrConfiguration)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is required", ErrConfiguration)
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("%w: TTL must be positive", ErrConfiguration)
	}
	if opts.KeyParam == "" && !opts.HashFallback {
		return nil, fmt.Errorf("%w: %s needs a key parameter or an explicit hash fallback", ErrConfiguration, name)
	}

	namespace := sanitizeToken(name)

	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		key, ok := s.deriveKey(name, args, opts)
		if !ok {
			// No identity for this call; memoization is skipped entirely.
			return handler(ctx, args)
		}

		bypass, _ := args[BypassKey].(bool)

		if !bypass {
			if rec, found := s.read(namespace, key); found {
				age := time.Since(rec.Timestamp)
				if age < opts.TTL {
					value, err := s.types.reconstruct(rec.ResultType, rec.Result)
					if err == nil {
						log.Debug().
							Str("function", name).
							Str("key", key).
							Dur("age", age).
							Msg("Cache hit")
						return value, nil
					}
					// Reconstruction failure is corruption: evict, fall
					// through to a live call.
					log.Warn().Str("function", name).Str("key", key).Err(err).Msg("Evicting unreconstructable cache record")
				}
				s.delete(namespace, key)
			}
		}

		output, err := handler(ctx, args)
		if err != nil {
			return nil, err
		}

		raw, merr := json.Marshal(output)
		if merr != nil {
			log.Warn().Str("function", name).Err(merr).Msg("Result not serializable, skipping cache write")
			return output, nil
		}

		s.write(namespace, key, Record{
			Timestamp:  time.Now(),
			Success:    true,
			Result:     raw,
			ResultType: tagFor(output),
		})

		return output, nil
	}, nil
}

// deriveKey extracts the identity token for one call. It prefers the
// configured identity parameter and only falls back to hashing when that
// is explicitly enabled.
func (s *Store) deriveKey(name string, args map[string]interface{}, opts Options) (string, bool) {
	if opts.KeyParam != "" {
		if v, ok := args[opts.KeyParam]; ok {
			return sanitizeToken(fmt.Sprintf("%v", v)), true
		}
	}
	if opts.HashFallback {
		return hashToken(withoutBypass(args)), true
	}

	log.Warn().
		Str("function", name).
		Str("param", opts.KeyParam).
		Msg("Identity parameter absent, call will not be cached")
	return "", false
}

// withoutBypass strips the bypass flag so it never influences identity.
func withoutBypass(args map[string]interface{}) map[string]interface{} {
	if _, ok := args[BypassKey]; !ok {
		return args
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k == BypassKey {
			continue
		}
		out[k] = v
	}
	return out
}
