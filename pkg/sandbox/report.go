package sandbox

import "time"

// ToolCallRecord captures one tool invocation made from sandboxed code.
type ToolCallRecord struct {
	Server     string                 `json:"server"`
	Tool       string                 `json:"tool"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Result     interface{}            `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"durationMs"`
}

// Report is the structured outcome of one sandbox execution. It is the
// only failure surface the host sees: compile errors, runtime errors and
// timeouts all land in Success/Error, and output captured before a
// failure is always present.
type Report struct {
	ID         string           `json:"id"`
	Success    bool             `json:"success"`
	Stdout     string           `json:"stdout"`
	Stderr     string           `json:"stderr"`
	Value      interface{}      `json:"value,omitempty"`
	Error      string           `json:"error,omitempty"`
	ToolCalls  []ToolCallRecord `json:"toolCalls,omitempty"`
	DurationMs int64            `json:"durationMs"`
}

// Options bounds one execution. Zero values fall back to the engine's
// defaults.
type Options struct {
	// Timeout bounds script execution and the entry-point call as one
	// unit.
	Timeout time.Duration

	// MaxToolCalls limits tool invocations per execution. Zero means
	// unlimited.
	MaxToolCalls int

	// MaxSteps limits interpreter steps, backstopping tight loops that
	// never hit a cancellation point. Zero means unlimited.
	MaxSteps uint64
}
