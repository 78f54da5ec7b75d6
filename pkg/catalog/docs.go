package catalog

import "fmt"

// DetailLevel selects how much documentation ToolDocs returns.
type DetailLevel string

const (
	// DetailSummary returns only the tool name and description.
	DetailSummary DetailLevel = "summary"

	// DetailFull returns the complete parameter schema and return shape.
	DetailFull DetailLevel = "full"
)

// ToolDoc is the documentation for one tool. Parameters and Returns are
// populated only at DetailFull.
type ToolDoc struct {
	Server      string  `json:"server"`
	Tool        string  `json:"tool"`
	Description string  `json:"description"`
	Parameters  []Param `json:"parameters,omitempty"`
	Returns     string  `json:"returns,omitempty"`
}

// ToolDocs returns documentation for one tool at the requested detail
// level. Full documents are built on first request and cached for the
// life of the process; summaries are served straight from the catalog.
func (c *Catalog) ToolDocs(server, tool string, detail DetailLevel) (ToolDoc, error) {
	def, err := c.Tool(server, tool)
	if err != nil {
		return ToolDoc{}, err
	}

	if detail != DetailFull {
		return ToolDoc{
			Server:      server,
			Tool:        def.Name,
			Description: def.Description,
		}, nil
	}

	key := server + "/" + tool

	c.mu.Lock()
	defer c.mu.Unlock()

	if doc, ok := c.docs[key]; ok {
		return doc, nil
	}

	doc := buildToolDoc(server, def)
	c.docs[key] = doc
	return doc, nil
}

// ServerDocs returns full documentation for every tool on a server.
func (c *Catalog) ServerDocs(server string) ([]ToolDoc, error) {
	def, err := c.Server(server)
	if err != nil {
		return nil, err
	}
	docs := make([]ToolDoc, 0, len(def.Tools))
	for _, tool := range def.Tools {
		doc, err := c.ToolDocs(server, tool.Name, DetailFull)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// buildToolDoc assembles the full document for a tool. Defaults are
// normalized into the description so a reader sees them without parsing
// the parameter objects.
func buildToolDoc(server string, def ToolDef) ToolDoc {
	params := make([]Param, len(def.Parameters))
	copy(params, def.Parameters)

	for i, p := range params {
		if p.Default != nil && p.Description != "" {
			params[i].Description = fmt.Sprintf("%s (default: %v)", p.Description, p.Default)
		}
	}

	returns := def.Returns
	if returns == "" {
		returns = "object"
	}

	return ToolDoc{
		Server:      server,
		Tool:        def.Name,
		Description: def.Description,
		Parameters:  params,
		Returns:     returns,
	}
}
