package core

import (
	"context"
	"encoding/json"
)

// Tool is a capability the reasoning loop can invoke by name.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool input.
	Schema() map[string]interface{}
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolParams carries the raw input of a tool call.
type ToolParams struct {
	Input     json.RawMessage
	RequestID string
}

// ToolResult is the outcome of a tool call.
// A non-nil error from Execute and Success == false are both observations, never fatal.
type ToolResult struct {
	Success bool
	Data    interface{}
	Error   string
}

// ToolDefinition describes a tool to a model backend.
type ToolDefinition struct {
	ToolName        string                 `json:"name"`
	ToolDescription string                 `json:"description"`
	InputSchema     map[string]interface{} `json:"input_schema"`
}

// Properties returns the "properties" member of the input schema.
func (d ToolDefinition) Properties() map[string]interface{} {
	props, _ := d.InputSchema["properties"].(map[string]interface{})
	return props
}

// Required returns the "required" member of the input schema.
func (d ToolDefinition) Required() []string {
	switch v := d.InputSchema["required"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
