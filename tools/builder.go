// Package tools provides the tool builder, schema helpers and the tools
// the document Q&A agent exposes to the model.
package tools

import (
	"context"

	"github.com/becomeliminal/nim-rag/core"
)

// HandlerFunc executes a tool call.
type HandlerFunc func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error)

// Builder assembles a core.Tool.
//
//	tool := tools.New("document_retriever").
//		Description("Search the uploaded document.").
//		Schema(tools.ObjectSchema(...)).
//		Handler(fn).
//		Build()
type Builder struct {
	name        string
	description string
	schema      map[string]interface{}
	handler     HandlerFunc
}

// New starts building a tool with the given name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Description sets the description shown to the model.
func (b *Builder) Description(d string) *Builder {
	b.description = d
	return b
}

// Schema sets the JSON schema of the tool input.
func (b *Builder) Schema(s map[string]interface{}) *Builder {
	b.schema = s
	return b
}

// Handler sets the function executed on each call.
func (b *Builder) Handler(h HandlerFunc) *Builder {
	b.handler = h
	return b
}

// Build returns the tool. A missing schema defaults to an empty object.
func (b *Builder) Build() core.Tool {
	schema := b.schema
	if schema == nil {
		schema = ObjectSchema(map[string]interface{}{})
	}
	return &funcTool{
		def: core.ToolDefinition{
			ToolName:        b.name,
			ToolDescription: b.description,
			InputSchema:     schema,
		},
		handler: b.handler,
	}
}

type funcTool struct {
	def     core.ToolDefinition
	handler HandlerFunc
}

func (t *funcTool) Name() string                   { return t.def.ToolName }
func (t *funcTool) Description() string            { return t.def.ToolDescription }
func (t *funcTool) Schema() map[string]interface{} { return t.def.InputSchema }

func (t *funcTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	if t.handler == nil {
		return &core.ToolResult{Success: false, Error: "tool has no handler"}, nil
	}
	return t.handler(ctx, params)
}

// Definition returns the backend-facing description of a tool.
func Definition(t core.Tool) core.ToolDefinition {
	return core.ToolDefinition{
		ToolName:        t.Name(),
		ToolDescription: t.Description(),
		InputSchema:     t.Schema(),
	}
}
