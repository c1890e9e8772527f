package engine

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/tools"
)

// ToolRegistry holds the tools available to the reasoning loop.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]core.Tool)}
}

// Register adds tools. A tool with an existing name replaces the old one.
func (r *ToolRegistry) Register(ts ...core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range ts {
		if _, exists := r.tools[t.Name()]; !exists {
			r.order = append(r.order, t.Name())
		}
		r.tools[t.Name()] = t
	}
}

// Get returns the tool with the given name.
func (r *ToolRegistry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions describes every tool for the backend, in registration order.
func (r *ToolRegistry) Definitions() []core.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]core.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, tools.Definition(r.tools[name]))
	}
	return defs
}

// FilterByNames returns the definitions of the named tools only.
func (r *ToolRegistry) FilterByNames(names ...string) []core.ToolDefinition {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var defs []core.ToolDefinition
	for _, d := range r.Definitions() {
		if want[d.ToolName] {
			defs = append(defs, d)
		}
	}
	return defs
}

// Execute runs the named tool. Unknown tools, tool errors and panics all
// come back as *core.ToolExecutionError.
func (r *ToolRegistry) Execute(ctx context.Context, call core.ToolCall, requestID string) (result *core.ToolResult, err error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		return nil, &core.ToolExecutionError{Tool: call.Name, Err: fmt.Errorf("unknown tool: %s", call.Name)}
	}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("[AGENT] Tool %s panicked: %v\n%s", call.Name, p, debug.Stack())
			result = nil
			err = &core.ToolExecutionError{Tool: call.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	result, err = tool.Execute(ctx, &core.ToolParams{Input: call.Input, RequestID: requestID})
	if err != nil {
		return nil, &core.ToolExecutionError{Tool: call.Name, Err: err}
	}
	if result == nil {
		return nil, &core.ToolExecutionError{Tool: call.Name, Err: fmt.Errorf("no result returned")}
	}
	if !result.Success {
		return result, &core.ToolExecutionError{Tool: call.Name, Err: fmt.Errorf("%s", result.Error)}
	}
	return result, nil
}
