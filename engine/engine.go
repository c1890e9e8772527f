package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/memory"
)

const (
	// DefaultMaxTurns bounds the number of model calls per question.
	DefaultMaxTurns = 8

	// DefaultContextTurns is how many earlier exchanges are prepended to a question.
	DefaultContextTurns = 2
)

// Engine is the reasoning loop: it alternates model calls and tool
// execution until the model answers without calling a tool.
type Engine struct {
	mu       sync.RWMutex
	backend  Backend
	registry *ToolRegistry

	memory       memory.Manager // Optional: conversation memory
	maxTurns     int
	timeout      time.Duration
	contextTurns int
	maxParallel  int
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory configures the engine with conversation memory. Context is read
// before the first model call and the exchange is recorded after a final answer.
func WithMemory(m memory.Manager) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithMaxTurns bounds the number of model calls per question.
func WithMaxTurns(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTurns = n
		}
	}
}

// WithTimeout bounds the wall-clock time of a run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithContextTurns sets how many earlier exchanges are prepended to a question.
func WithContextTurns(n int) Option {
	return func(e *Engine) {
		e.contextTurns = n
	}
}

// WithMaxParallelTools caps concurrent tool calls within one step. Zero means unlimited.
func WithMaxParallelTools(n int) Option {
	return func(e *Engine) {
		e.maxParallel = n
	}
}

// NewEngine creates a new engine with the given backend and registry.
func NewEngine(backend Backend, registry *ToolRegistry, opts ...Option) *Engine {
	e := &Engine{
		backend:      backend,
		registry:     registry,
		maxTurns:     DefaultMaxTurns,
		contextTurns: DefaultContextTurns,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *ToolRegistry {
	return e.registry
}

// Backend returns the current backend.
func (e *Engine) Backend() Backend {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend
}

// SetBackend swaps the backend used by subsequent runs.
func (e *Engine) SetBackend(b Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = b
}

// Input represents the input to an agent run.
type Input struct {
	// UserMessage is the question to answer.
	UserMessage string

	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string

	// Temperature is passed to the backend on every call.
	Temperature float64

	// AvailableTools filters which tools from the registry are available.
	// If empty, all registered tools are available.
	AvailableTools []string
}

// Output represents the output from an agent run.
type Output struct {
	// Type indicates the kind of output.
	Type OutputType

	// Text is the answer, or an error message when Type is OutputError.
	Text string

	// Traces records every tool step in order. Empty when Type is OutputError.
	Traces []*core.Trace

	// Turns is the number of model calls made.
	Turns int

	// Model is the model that produced the answer.
	Model string

	SessionID string

	// Error is set when Type is OutputError.
	Error error
}

// OutputType indicates the kind of output from an agent run.
type OutputType int

const (
	// OutputComplete indicates the agent finished successfully.
	OutputComplete OutputType = iota

	// OutputError indicates the run failed. Memory was not updated.
	OutputError
)

// Run answers one question.
//
// Failures of the backend, timeouts and running out of turns produce an
// OutputError whose Text starts with "Error processing question:". Tool
// failures never end the run; they are fed back to the model as observations.
// The returned error is only non-nil for invalid input.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("nil input")
	}
	backend := e.Backend()
	if backend == nil {
		return nil, errors.New("engine has no backend")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	systemPrompt := input.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	// === START: prepend earlier exchanges ===
	question := input.UserMessage
	if e.memory != nil && e.contextTurns > 0 {
		if history := e.memory.RecentContext(e.contextTurns); history != "" {
			log.Printf("[MEMORY] Prepending %d earlier exchanges", e.contextTurns)
			question = WithContext(history, input.UserMessage)
		}
	}

	session := NewSession()
	session.AddUserMessage(question)

	toolDefs := e.registry.Definitions()
	if len(input.AvailableTools) > 0 {
		toolDefs = e.registry.FilterByNames(input.AvailableTools...)
	}

	for {
		if ctx.Err() != nil {
			return e.fail(session, fmt.Errorf("timed out: %w", ctx.Err())), nil
		}
		if session.TurnCount >= e.maxTurns {
			return e.fail(session, fmt.Errorf("%w after %d turns", core.ErrBudgetExceeded, session.TurnCount)), nil
		}

		session.IncrementTurnCount()

		// === THINK ===
		msg, err := backend.Complete(ctx, &Request{
			System:      systemPrompt,
			Messages:    session.Messages(),
			Tools:       toolDefs,
			Temperature: input.Temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return e.fail(session, fmt.Errorf("timed out: %w", ctx.Err())), nil
			}
			var be *core.BackendError
			if !errors.As(err, &be) {
				err = &core.BackendError{Provider: backend.Model(), Op: "complete", Err: err}
			}
			return e.fail(session, err), nil
		}
		if msg == nil {
			return e.fail(session, &core.BackendError{Provider: backend.Model(), Op: "complete", Err: errors.New("empty response")}), nil
		}

		for i := range msg.ToolCalls {
			if msg.ToolCalls[i].ID == "" {
				msg.ToolCalls[i].ID = uuid.New().String()
			}
		}
		session.AddAssistantMessage(*msg)

		// === DONE ===
		if len(msg.ToolCalls) == 0 {
			answer := session.FinalAnswer()

			if e.memory != nil {
				e.memory.RecordConversation(input.UserMessage, answer)
			}

			log.Printf("[AGENT] Session %s answered after %d turns and %d tool calls",
				session.ID, session.TurnCount, len(session.Traces))

			return &Output{
				Type:      OutputComplete,
				Text:      answer,
				Traces:    session.Traces,
				Turns:     session.TurnCount,
				Model:     backend.Model(),
				SessionID: session.ID,
			}, nil
		}

		// === ACT / OBSERVE ===
		session.AddToolResults(e.dispatch(ctx, session, msg.ToolCalls))
	}
}

// dispatch runs the tool calls of one step concurrently and returns one
// observation per call, in call order.
func (e *Engine) dispatch(ctx context.Context, session *Session, calls []core.ToolCall) []core.Message {
	results := make([]core.Message, len(calls))
	traces := make([]*core.Trace, len(calls))

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i], traces[i] = e.act(ctx, session.ID, session.TurnCount, call)
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range traces {
		session.AddTrace(t)
		log.Printf("[REACT TRACE] %s", t.String())
	}
	return results
}

// act executes one tool call and turns the outcome into an observation.
func (e *Engine) act(ctx context.Context, sessionID string, turn int, call core.ToolCall) (core.Message, *core.Trace) {
	start := time.Now()
	result, err := e.registry.Execute(ctx, call, sessionID)

	trace := &core.Trace{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		TurnNumber:  turn,
		Thought:     extractThought(call.Input),
		Action:      call.Name,
		ActionInput: call.Input,
		Observation: formatObservation(result, err),
		Success:     err == nil,
		DurationMs:  time.Since(start).Milliseconds(),
		Timestamp:   start.Unix(),
	}
	if err != nil {
		trace.Metadata = map[string]string{
			"error":      err.Error(),
			"error_type": categorizeError(err.Error()),
		}
	}

	return core.Message{
		Role:       core.RoleTool,
		Text:       trace.Observation,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    err != nil,
	}, trace
}

func (e *Engine) fail(session *Session, err error) *Output {
	log.Printf("[AGENT] Session %s failed after %d turns: %v", session.ID, session.TurnCount, err)
	return &Output{
		Type:      OutputError,
		Text:      "Error processing question: " + err.Error(),
		Turns:     session.TurnCount,
		SessionID: session.ID,
		Error:     err,
	}
}

// extractThought reads the optional "thought" field of a tool input.
func extractThought(input json.RawMessage) string {
	var base core.BaseInput
	if err := json.Unmarshal(input, &base); err != nil {
		return ""
	}
	return strings.TrimSpace(base.Thought)
}

// formatObservation renders a tool outcome as text for the model.
func formatObservation(result *core.ToolResult, err error) string {
	if err != nil {
		return fmt.Sprintf("Error: %s", err.Error())
	}
	if result == nil {
		return "No result returned"
	}

	switch v := result.Data.(type) {
	case string:
		return v
	case nil:
		return "Success"
	default:
		bytes, mErr := json.Marshal(v)
		if mErr != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// categorizeError maps error messages to coarse types for trace metadata.
func categorizeError(errMsg string) string {
	errLower := strings.ToLower(errMsg)

	switch {
	case errLower == "":
		return "unknown"
	case strings.Contains(errLower, "unknown tool"):
		return "unknown_tool"
	case strings.Contains(errLower, "not found"), strings.Contains(errLower, "does not exist"):
		return "not_found"
	case strings.Contains(errLower, "invalid"), strings.Contains(errLower, "missing input"):
		return "invalid_input"
	case strings.Contains(errLower, "timeout"), strings.Contains(errLower, "deadline"):
		return "timeout"
	case strings.Contains(errLower, "rate limit"), strings.Contains(errLower, "too many"):
		return "rate_limit"
	case strings.Contains(errLower, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}
