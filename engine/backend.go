package engine

import (
	"context"

	"github.com/becomeliminal/nim-rag/core"
)

// Backend is the language model behind the reasoning loop.
//
// Complete receives the whole transcript and returns the next assistant
// message. A message without ToolCalls ends the loop. The loop is
// deterministic given the messages Complete returns.
type Backend interface {
	Complete(ctx context.Context, req *Request) (*core.Message, error)

	// Model returns the model name the backend was built for.
	Model() string
}

// Request is one model call.
type Request struct {
	System      string
	Messages    []core.Message
	Tools       []core.ToolDefinition
	Temperature float64
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req *Request) (*core.Message, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req *Request) (*core.Message, error) {
	return f(ctx, req)
}

// Model returns "func".
func (f BackendFunc) Model() string { return "func" }
