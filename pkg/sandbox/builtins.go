package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"

	"github.com/harun/metatool/pkg/catalog"
	"github.com/harun/metatool/pkg/dispatch"
)

// ErrLimitExceeded indicates an execution exhausted one of its budgets.
var ErrLimitExceeded = errors.New("limit exceeded")

// session holds the per-execution state shared by the injected builtins:
// captured output, the tool-call trace, and the remaining call budget.
// A session is confined to one execution and never reused.
type session struct {
	ctx          context.Context
	cat          *catalog.Catalog
	disp         *dispatch.Dispatcher
	stdout       strings.Builder
	stderr       strings.Builder
	toolCalls    []ToolCallRecord
	maxToolCalls int
	callCount    int
}

// predeclared builds the execution namespace. This is the complete
// capability set reachable from sandboxed code: discovery functions, the
// tool proxy factory, and side-effect-free Starlark modules. Nothing
// else is injected, so nothing else is reachable.
func (s *session) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"list_servers":     starlark.NewBuiltin("list_servers", s.builtinListServers),
		"describe_servers": starlark.NewBuiltin("describe_servers", s.builtinDescribeServers),
		"get_tool_docs":    starlark.NewBuiltin("get_tool_docs", s.builtinGetToolDocs),
		"search_tools":     starlark.NewBuiltin("search_tools", s.builtinSearchTools),
		"use_tool":         starlark.NewBuiltin("use_tool", s.builtinUseTool),
		"json":             starlarkjson.Module,
		"time":             starlarktime.Module,
		"math":             starlarkmath.Module,
	}
}

func (s *session) builtinListServers(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs("list_servers", args, kwargs); err != nil {
		return nil, err
	}
	names := s.cat.ListServers()
	elems := make([]starlark.Value, len(names))
	for i, name := range names {
		elems[i] = starlark.String(name)
	}
	return starlark.NewList(elems), nil
}

func (s *session) builtinDescribeServers(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs("describe_servers", args, kwargs); err != nil {
		return nil, err
	}
	descs := s.cat.DescribeServers()
	elems := make([]starlark.Value, len(descs))
	for i, desc := range descs {
		tools := make([]interface{}, len(desc.Tools))
		for j, tool := range desc.Tools {
			tools[j] = tool
		}
		elems[i] = goToStarlark(map[string]interface{}{
			"name":        desc.Name,
			"description": desc.Description,
			"tools":       tools,
		})
	}
	return starlark.NewList(elems), nil
}

func (s *session) builtinGetToolDocs(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var server, tool, detail string
	detail = string(catalog.DetailSummary)
	if err := starlark.UnpackArgs("get_tool_docs", args, kwargs,
		"server", &server, "tool?", &tool, "detail?", &detail); err != nil {
		return nil, err
	}

	level := catalog.DetailLevel(detail)
	if level != catalog.DetailSummary && level != catalog.DetailFull {
		return nil, fmt.Errorf("get_tool_docs: detail must be %q or %q", catalog.DetailSummary, catalog.DetailFull)
	}

	if tool != "" {
		doc, err := s.cat.ToolDocs(server, tool, level)
		if err != nil {
			return nil, err
		}
		return goToStarlark(docToMap(doc)), nil
	}

	def, err := s.cat.Server(server)
	if err != nil {
		return nil, err
	}
	elems := make([]starlark.Value, 0, len(def.Tools))
	for _, t := range def.Tools {
		doc, err := s.cat.ToolDocs(server, t.Name, level)
		if err != nil {
			return nil, err
		}
		elems = append(elems, goToStarlark(docToMap(doc)))
	}
	return starlark.NewList(elems), nil
}

func (s *session) builtinSearchTools(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var query string
	limit := 0
	if err := starlark.UnpackArgs("search_tools", args, kwargs,
		"query", &query, "limit?", &limit); err != nil {
		return nil, err
	}

	hits := s.cat.Search(query, limit)
	elems := make([]starlark.Value, len(hits))
	for i, hit := range hits {
		elems[i] = goToStarlark(map[string]interface{}{
			"server":      hit.Server,
			"tool":        hit.Tool,
			"description": hit.Description,
		})
	}
	return starlark.NewList(elems), nil
}

// builtinUseTool is the proxy factory: use_tool(server, tool) returns a
// callable that forwards keyword arguments to the dispatcher and nothing
// else. Every call through it is traced and counted against the budget.
func (s *session) builtinUseTool(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var server, tool string
	if err := starlark.UnpackArgs("use_tool", args, kwargs,
		"server", &server, "tool", &tool); err != nil {
		return nil, err
	}

	invoke, err := s.disp.Proxy(server, tool)
	if err != nil {
		return nil, err
	}

	name := server + "." + tool
	proxy := func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: arguments must be passed by keyword", name)
		}
		if s.maxToolCalls > 0 && s.callCount >= s.maxToolCalls {
			return nil, fmt.Errorf("%w: max tool calls (%d)", ErrLimitExceeded, s.maxToolCalls)
		}
		s.callCount++

		callArgs := kwargsToMap(kwargs)

		start := time.Now()
		result := invoke(s.ctx, callArgs)
		duration := time.Since(start).Milliseconds()

		record := ToolCallRecord{
			Server:     server,
			Tool:       tool,
			Args:       callArgs,
			DurationMs: duration,
		}
		if result.Success {
			record.Result = result.Output
		} else {
			record.Error = result.Error
			fmt.Fprintf(&s.stderr, "tool %s/%s failed: %s\n", server, tool, result.Error)
		}
		s.toolCalls = append(s.toolCalls, record)

		return goToStarlark(map[string]interface{}{
			"success": result.Success,
			"result":  result.Output,
			"error":   result.Error,
		}), nil
	}
	return starlark.NewBuiltin(name, proxy), nil
}

func docToMap(doc catalog.ToolDoc) map[string]interface{} {
	out := map[string]interface{}{
		"server":      doc.Server,
		"tool":        doc.Tool,
		"description": doc.Description,
	}
	if len(doc.Parameters) > 0 {
		params := make([]interface{}, len(doc.Parameters))
		for i, p := range doc.Parameters {
			params[i] = map[string]interface{}{
				"name":        p.Name,
				"type":        p.Type,
				"description": p.Description,
				"required":    p.Required,
				"default":     p.Default,
			}
		}
		out["parameters"] = params
	}
	if doc.Returns != "" {
		out["returns"] = doc.Returns
	}
	return out
}
