package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/engine"
)

var errNoBackend = errors.New("no backend configured")

// Completer runs single-prompt completions against whichever backend is
// current at call time. It satisfies tools.Completer.
type Completer struct {
	current     func() engine.Backend
	temperature func() float64
}

// NewCompleter creates a completer. temperature may be nil.
func NewCompleter(current func() engine.Backend, temperature func() float64) *Completer {
	return &Completer{current: current, temperature: temperature}
}

// Complete sends prompt as the only user message, without tools, and
// returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	b := c.current()
	if b == nil {
		return "", &core.BackendError{Provider: "none", Op: "complete", Err: errNoBackend}
	}

	var temp float64
	if c.temperature != nil {
		temp = c.temperature()
	}

	msg, err := b.Complete(ctx, &engine.Request{
		Messages:    []core.Message{{Role: core.RoleUser, Text: prompt}},
		Temperature: temp,
	})
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return strings.TrimSpace(msg.Text), nil
}
