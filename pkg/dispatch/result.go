package dispatch

import "context"

// Result is the uniform contract every tool invocation resolves to.
// The dispatcher guarantees this shape regardless of how the underlying
// handler behaves: callers never see a raw error or panic.
type Result struct {
	Success bool                   `json:"success"`
	Output  interface{}            `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Handler is the function signature every tool implements. Handlers are
// keyword-style: arguments arrive as a map and the handler picks out what
// it needs. A nil error means Output is the tool's result.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Invoker is a bound (server, tool) pair: calling it forwards to the
// dispatcher and nothing else. It is the only capability handed to
// sandboxed code.
type Invoker func(ctx context.Context, args map[string]interface{}) Result

// failure builds a failed Result from an error message.
func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}
