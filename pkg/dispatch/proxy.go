package dispatch

import (
	"context"
	"fmt"
)

// Proxy returns an Invoker bound to one (server, tool) pair. The pair is
// validated against the catalog up front so callers learn about a bad
// binding when they build it, not when they first call it.
//
// The returned closure forwards to Execute and carries no other
// capability; it is the sole channel by which sandboxed code reaches the
// outside world.
func (d *Dispatcher) Proxy(server, tool string) (Invoker, error) {
	if !d.cat.Has(server, tool) {
		return nil, fmt.Errorf("cannot build proxy for unknown tool %s/%s", server, tool)
	}
	return func(ctx context.Context, args map[string]interface{}) Result {
		return d.Execute(ctx, server, tool, args)
	}, nil
}
