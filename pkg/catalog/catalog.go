package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a server or tool is not in the catalog.
var ErrNotFound = errors.New("not found")

// Param describes a single tool parameter.
type Param struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDef declares a tool: its identity, documentation source, and
// parameter metadata. Handlers are bound separately by the dispatcher.
type ToolDef struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  []Param `json:"parameters,omitempty"`
	Returns     string  `json:"returns,omitempty"`
}

// ServerDef declares a named group of tools sharing one external system.
type ServerDef struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tools       []ToolDef `json:"tools"`
}

// ServerDescriptor is the cheap, always-available view of a server.
// It never includes parameter schemas.
type ServerDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
}

// Summary is a single search hit: one tool plus where it lives.
type Summary struct {
	Server      string `json:"server"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
}

// Catalog is the static registry of servers and tools. It is immutable
// after Build; listing and describing servers never constructs a tool
// schema, so discovery cost stays flat no matter how large the catalog is.
type Catalog struct {
	order   []string
	servers map[string]ServerDef

	mu   sync.Mutex
	docs map[string]ToolDoc
}

// Build constructs a catalog from server definitions. Duplicate server
// names, duplicate tool names within a server, and empty identifiers are
// load-time errors.
func Build(defs []ServerDef) (*Catalog, error) {
	c := &Catalog{
		servers: make(map[string]ServerDef, len(defs)),
		docs:    make(map[string]ToolDoc),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("server name cannot be empty")
		}
		if _, exists := c.servers[def.Name]; exists {
			return nil, fmt.Errorf("duplicate server: %s", def.Name)
		}
		seen := make(map[string]bool, len(def.Tools))
		for _, tool := range def.Tools {
			if tool.Name == "" {
				return nil, fmt.Errorf("server %s: tool name cannot be empty", def.Name)
			}
			if seen[tool.Name] {
				return nil, fmt.Errorf("server %s: duplicate tool: %s", def.Name, tool.Name)
			}
			seen[tool.Name] = true
		}
		c.order = append(c.order, def.Name)
		c.servers[def.Name] = def
	}

	log.Debug().Int("servers", len(c.order)).Msg("Catalog built")

	return c, nil
}

// ListServers returns server names in discovery order.
func (c *Catalog) ListServers() []string {
	return append([]string(nil), c.order...)
}

// DescribeServers returns the descriptor of every server in discovery
// order. This is the zero-context discovery surface: it copies names and
// descriptions already in memory and builds nothing.
func (c *Catalog) DescribeServers() []ServerDescriptor {
	out := make([]ServerDescriptor, 0, len(c.order))
	for _, name := range c.order {
		def := c.servers[name]
		tools := make([]string, len(def.Tools))
		for i, tool := range def.Tools {
			tools[i] = tool.Name
		}
		out = append(out, ServerDescriptor{
			Name:        def.Name,
			Description: def.Description,
			Tools:       tools,
		})
	}
	return out
}

// Server returns the definition of a named server.
func (c *Catalog) Server(name string) (ServerDef, error) {
	def, ok := c.servers[name]
	if !ok {
		return ServerDef{}, fmt.Errorf("server %q: %w", name, ErrNotFound)
	}
	return def, nil
}

// Tool returns the definition of a named tool on a named server.
// The server is validated before the tool.
func (c *Catalog) Tool(server, tool string) (ToolDef, error) {
	def, err := c.Server(server)
	if err != nil {
		return ToolDef{}, err
	}
	for _, t := range def.Tools {
		if t.Name == tool {
			return t, nil
		}
	}
	return ToolDef{}, fmt.Errorf("tool %q on server %q: %w", tool, server, ErrNotFound)
}

// Has reports whether the (server, tool) pair exists.
func (c *Catalog) Has(server, tool string) bool {
	_, err := c.Tool(server, tool)
	return err == nil
}

// Search returns tools whose name or description contains the query,
// case-insensitively, in discovery order. A non-positive limit returns
// all matches; a positive limit truncates without reordering.
func (c *Catalog) Search(query string, limit int) []Summary {
	query = strings.ToLower(query)
	var out []Summary
	for _, name := range c.order {
		def := c.servers[name]
		for _, tool := range def.Tools {
			if query != "" &&
				!strings.Contains(strings.ToLower(tool.Name), query) &&
				!strings.Contains(strings.ToLower(tool.Description), query) {
				continue
			}
			out = append(out, Summary{
				Server:      def.Name,
				Tool:        tool.Name,
				Description: tool.Description,
			})
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}
