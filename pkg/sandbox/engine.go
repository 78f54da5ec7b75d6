package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/harun/metatool/pkg/catalog"
	"github.com/harun/metatool/pkg/dispatch"
)

// EntryPoint is the reserved function name sandboxed code may define.
// If present after top-level execution, it is called and its return
// value becomes the report's Value.
const EntryPoint = "main"

const scriptName = "snippet.star"

// Engine executes orchestrator-supplied code in a restricted Starlark
// namespace. The reachable capability set is exactly what the session
// injects; the interpreter itself has no file, process, or network
// access to leak.
//
// Execute never returns an error and never panics: compile failures,
// runtime failures, and timeouts are all normalized into the Report.
type Engine struct {
	cat      *catalog.Catalog
	disp     *dispatch.Dispatcher
	defaults Options
}

// NewEngine builds an engine over a catalog and dispatcher. The defaults
// apply to any Execute option left at its zero value.
func NewEngine(cat *catalog.Catalog, disp *dispatch.Dispatcher, defaults Options) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &Engine{cat: cat, disp: disp, defaults: defaults}, nil
}

// fileOptions permits the control flow an orchestrator-written script
// needs; it grants no additional capability.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Execute runs one code snippet bounded by the resolved timeout. Output
// captured before a failure is always returned.
func (e *Engine) Execute(ctx context.Context, code string, opts Options) (report Report) {
	start := time.Now()

	opts = e.resolve(opts)

	report.ID = uuid.New().String()

	// Last line of defense: a bug below this point must still produce a
	// report, not an escaped panic.
	defer func() {
		if r := recover(); r != nil {
			report.Success = false
			report.Error = fmt.Sprintf("internal error: %v", r)
		}
		report.DurationMs = time.Since(start).Milliseconds()
	}()

	sess := &session{
		cat:          e.cat,
		disp:         e.disp,
		maxToolCalls: opts.MaxToolCalls,
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	sess.ctx = ctx

	thread := &starlark.Thread{
		Name: "sandbox-" + report.ID,
		Print: func(_ *starlark.Thread, msg string) {
			sess.stdout.WriteString(msg)
			sess.stdout.WriteByte('\n')
		},
	}
	if opts.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(opts.MaxSteps)
	}

	// The watchdog cancels the interpreter when the deadline passes;
	// cancellation takes effect at the next interpreter step, so tight
	// loops are interruptible.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("deadline exceeded")
		case <-watchdogDone:
		}
	}()

	value, err := e.run(thread, code, sess)

	report.Stdout = sess.stdout.String()
	report.Stderr = sess.stderr.String()
	report.ToolCalls = sess.toolCalls

	if err != nil {
		report.Success = false
		report.Error = e.describe(err, ctx, opts.Timeout)
		log.Debug().Str("id", report.ID).Str("error", report.Error).Msg("Sandbox execution failed")
		return report
	}

	report.Success = true
	report.Value = value

	log.Debug().
		Str("id", report.ID).
		Int("toolCalls", len(report.ToolCalls)).
		Msg("Sandbox execution completed")

	return report
}

// run executes the script's top level and then the entry point, if one
// was defined. Both stages share the thread and therefore the same
// deadline and step budget.
func (e *Engine) run(thread *starlark.Thread, code string, sess *session) (interface{}, error) {
	globals, err := starlark.ExecFileOptions(fileOptions, thread, scriptName, code, sess.predeclared())
	if err != nil {
		return nil, err
	}

	entry, ok := globals[EntryPoint]
	if !ok {
		return nil, nil
	}
	fn, ok := entry.(starlark.Callable)
	if !ok {
		return nil, nil
	}

	value, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, err
	}
	return fromStarlark(value), nil
}

// describe renders an execution error for the report. The consumer is a
// language model reasoning over diagnostic text, so errors stay
// messages: a timeout is worded as such, and runtime errors keep their
// backtrace.
func (e *Engine) describe(err error, ctx context.Context, timeout time.Duration) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("execution timeout after %s", timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return "execution cancelled"
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}

func (e *Engine) resolve(opts Options) Options {
	if opts.Timeout == 0 {
		opts.Timeout = e.defaults.Timeout
	}
	if opts.MaxToolCalls == 0 {
		opts.MaxToolCalls = e.defaults.MaxToolCalls
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = e.defaults.MaxSteps
	}
	return opts
}
