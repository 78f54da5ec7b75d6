package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/metatool/pkg/catalog"
)

// Binding attaches a concrete handler to one cataloged (server, tool) pair.
type Binding struct {
	Server  string
	Tool    string
	Handler Handler
}

// Dispatcher resolves (server, tool) pairs to handlers and invokes them,
// enforcing the uniform Result contract. The handler table is built once;
// a cataloged tool without a handler, or a binding for an uncataloged
// tool, fails at build time rather than at call time.
type Dispatcher struct {
	cat      *catalog.Catalog
	handlers map[string]Handler

	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

// New builds a dispatcher over a catalog. Every tool in the catalog must
// be bound exactly once.
func New(cat *catalog.Catalog, bindings []Binding) (*Dispatcher, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	d := &Dispatcher{
		cat:      cat,
		handlers: make(map[string]Handler, len(bindings)),
		schemas:  make(map[string]*gojsonschema.Schema),
	}

	for _, b := range bindings {
		if b.Handler == nil {
			return nil, fmt.Errorf("binding %s/%s: handler cannot be nil", b.Server, b.Tool)
		}
		if !cat.Has(b.Server, b.Tool) {
			return nil, fmt.Errorf("binding %s/%s: not in catalog", b.Server, b.Tool)
		}
		key := bindingKey(b.Server, b.Tool)
		if _, dup := d.handlers[key]; dup {
			return nil, fmt.Errorf("binding %s/%s: bound twice", b.Server, b.Tool)
		}
		d.handlers[key] = b.Handler
	}

	var unbound []string
	for _, desc := range cat.DescribeServers() {
		for _, tool := range desc.Tools {
			if _, ok := d.handlers[bindingKey(desc.Name, tool)]; !ok {
				unbound = append(unbound, desc.Name+"/"+tool)
			}
		}
	}
	if len(unbound) > 0 {
		return nil, fmt.Errorf("cataloged tools without handlers: %s", strings.Join(unbound, ", "))
	}

	log.Debug().Int("tools", len(d.handlers)).Msg("Dispatcher built")

	return d, nil
}

// Execute invokes one tool. Unknown server or tool fails fast without
// touching any handler. Handler errors and panics are converted into a
// failed Result; no exception crosses this boundary and no retry happens.
func (d *Dispatcher) Execute(ctx context.Context, server, tool string, args map[string]interface{}) Result {
	start := time.Now()

	def, err := d.cat.Tool(server, tool)
	if err != nil {
		log.Warn().Str("server", server).Str("tool", tool).Msg("Dispatch rejected")
		return failure(err.Error())
	}

	handler := d.handlers[bindingKey(server, tool)]

	if err := d.validateArgs(server, def, args); err != nil {
		log.Warn().Str("server", server).Str("tool", tool).Err(err).Msg("Argument validation failed")
		return failure(fmt.Sprintf("invalid arguments for %s/%s: %v", server, tool, err))
	}

	log.Debug().Str("server", server).Str("tool", tool).Msg("Executing tool")

	output, err := d.invoke(ctx, handler, args)
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Str("server", server).
			Str("tool", tool).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")
		return Result{
			Success: false,
			Error:   err.Error(),
			Meta:    map[string]interface{}{"duration_ms": duration.Milliseconds()},
		}
	}

	return Result{
		Success: true,
		Output:  output,
		Meta:    map[string]interface{}{"duration_ms": duration.Milliseconds()},
	}
}

// invoke runs the handler with panic recovery. A panicking tool becomes
// an ordinary error so the dispatcher can keep its contract.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, args map[string]interface{}) (output interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, args)
}

// validateArgs checks args against the tool's generated JSON schema.
// Schemas are compiled on first use per tool, so an invocation pays only
// for the tool it calls.
func (d *Dispatcher) validateArgs(server string, def catalog.ToolDef, args map[string]interface{}) error {
	schema, err := d.schemaFor(server, def)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func (d *Dispatcher) schemaFor(server string, def catalog.ToolDef) (*gojsonschema.Schema, error) {
	if len(def.Parameters) == 0 {
		return nil, nil
	}

	key := bindingKey(server, def.Name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if schema, ok := d.schemas[key]; ok {
		return schema, nil
	}

	schema, err := compileSchema(def)
	if err != nil {
		return nil, fmt.Errorf("schema for %s/%s: %w", server, def.Name, err)
	}
	d.schemas[key] = schema
	return schema, nil
}

// compileSchema generates a JSON schema from the tool's parameter
// metadata. Unknown argument keys are allowed so cross-cutting flags
// (like the cache bypass flag) pass through untouched.
func compileSchema(def catalog.ToolDef) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, p := range def.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func bindingKey(server, tool string) string {
	return server + "/" + tool
}
