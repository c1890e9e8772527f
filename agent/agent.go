// Package agent wires the reasoning engine, retrieval, memory and ingestion
// into the document Q&A agent used by the CLI and the server.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/becomeliminal/nim-rag/backend"
	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/engine"
	"github.com/becomeliminal/nim-rag/index"
	"github.com/becomeliminal/nim-rag/ingest"
	"github.com/becomeliminal/nim-rag/memory"
	"github.com/becomeliminal/nim-rag/retrieval"
	"github.com/becomeliminal/nim-rag/tools"
)

// ErrInvalidSettings is returned by UpdateSettings for out-of-range values.
var ErrInvalidSettings = errors.New("invalid settings")

// Config holds everything needed to build an Agent.
type Config struct {
	Settings core.Settings

	// Factory builds the backend for Settings.Model.
	Factory *backend.Factory

	Index *index.Index

	// Pipeline defaults to ingest.NewPipeline(Index).
	Pipeline *ingest.Pipeline

	MaxTurns     int
	Timeout      time.Duration
	SystemPrompt string
}

// Answer is the result of one question.
type Answer struct {
	Text   string
	Traces []*core.Trace
	Turns  int
	Model  string

	// Err is set when the question could not be answered. Text then holds
	// the user-visible error message.
	Err error
}

// Status describes the loaded document and the current settings.
type Status struct {
	State    index.State
	Chunks   int
	Sample   []core.Chunk
	Settings core.Settings
	Memory   string
}

// Agent answers questions about the ingested document.
//
// Ask calls are serialized: the agent holds a single conversation.
type Agent struct {
	askMu sync.Mutex

	mu       sync.RWMutex
	settings core.Settings

	factory      *backend.Factory
	engine       *engine.Engine
	index        *index.Index
	pipeline     *ingest.Pipeline
	memory       *memory.Conversation
	retriever    *retrieval.Retriever
	systemPrompt string
}

// New builds the agent and its initial backend.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.Factory == nil {
		return nil, errors.New("agent: backend factory is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("agent: index is required")
	}

	settings := cfg.Settings
	if settings.Model == "" {
		settings.Model = backend.DefaultModel
	}
	if settings.TopK == 0 {
		settings.TopK = retrieval.DefaultTopK
	}
	if err := validate(settings.Temperature, settings.TopK); err != nil {
		return nil, err
	}

	b, err := cfg.Factory.New(ctx, settings.Model)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		settings:     settings,
		factory:      cfg.Factory,
		index:        cfg.Index,
		pipeline:     cfg.Pipeline,
		memory:       memory.NewConversation(),
		systemPrompt: cfg.SystemPrompt,
	}
	if a.pipeline == nil {
		a.pipeline = ingest.NewPipeline(cfg.Index)
	}
	a.retriever = retrieval.New(cfg.Index, func() int { return a.Settings().TopK })

	registry := engine.NewToolRegistry()
	registry.Register(tools.RAGTools(tools.Deps{
		Documents: a.retriever,
		History:   a.memory,
		Completer: backend.NewCompleter(a.currentBackend, func() float64 { return a.Settings().Temperature }),
	})...)

	opts := []engine.Option{engine.WithMemory(a.memory)}
	if cfg.MaxTurns > 0 {
		opts = append(opts, engine.WithMaxTurns(cfg.MaxTurns))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, engine.WithTimeout(cfg.Timeout))
	}
	a.engine = engine.NewEngine(b, registry, opts...)

	log.Printf("[AGENT] Ready with model %s, temperature %.2f, top_k %d, tools %v",
		settings.Model, settings.Temperature, settings.TopK, registry.Names())
	return a, nil
}

// Ask answers a question. Failures are reported in Answer.Err and never
// update the conversation memory.
func (a *Agent) Ask(ctx context.Context, question string) *Answer {
	a.askMu.Lock()
	defer a.askMu.Unlock()

	settings := a.Settings()
	out, err := a.engine.Run(ctx, &engine.Input{
		UserMessage:  question,
		SystemPrompt: a.systemPrompt,
		Temperature:  settings.Temperature,
	})
	if err != nil {
		return &Answer{Text: "Error processing question: " + err.Error(), Err: err}
	}
	return &Answer{
		Text:   out.Text,
		Traces: out.Traces,
		Turns:  out.Turns,
		Model:  out.Model,
		Err:    out.Error,
	}
}

// Settings returns a copy of the current settings.
func (a *Agent) Settings() core.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// UpdateSettings changes temperature and top-k. Nil leaves a value unchanged.
// Changes apply to the next model call and the next retrieval.
func (a *Agent) UpdateSettings(temperature *float64, topK *int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.settings
	if temperature != nil {
		next.Temperature = *temperature
	}
	if topK != nil {
		next.TopK = *topK
	}
	if err := validate(next.Temperature, next.TopK); err != nil {
		return err
	}
	a.settings = next
	log.Printf("[AGENT] Settings updated: temperature %.2f, top_k %d", next.Temperature, next.TopK)
	return nil
}

// SetModel builds a backend for model and uses it for subsequent questions.
// On failure the current model stays in place.
func (a *Agent) SetModel(ctx context.Context, model string) error {
	b, err := a.factory.New(ctx, model)
	if err != nil {
		return err
	}
	a.engine.SetBackend(b)

	a.mu.Lock()
	a.settings.Model = b.Model()
	a.mu.Unlock()
	return nil
}

// Model returns the name of the model currently answering.
func (a *Agent) Model() string {
	return a.Settings().Model
}

// RetrieveWithScores returns the current top-k chunks for query with their
// similarity scores, highest first.
func (a *Agent) RetrieveWithScores(ctx context.Context, query string) ([]core.ScoredChunk, error) {
	return a.retriever.Scored(ctx, query, a.retriever.TopK())
}

// Ingest adds the document at path to the index.
func (a *Agent) Ingest(ctx context.Context, path string) (int, error) {
	return a.pipeline.Ingest(ctx, path)
}

// Replace clears the index and the conversation, then ingests path.
func (a *Agent) Replace(ctx context.Context, path string) (int, error) {
	a.askMu.Lock()
	defer a.askMu.Unlock()

	n, err := a.pipeline.Replace(ctx, path)
	if err != nil {
		return 0, err
	}
	a.memory.Clear()
	return n, nil
}

// Watch re-ingests path through Replace whenever the file changes, so a
// re-ingest never overlaps a question and the conversation about the old
// document is dropped.
func (a *Agent) Watch(ctx context.Context, path string, debounce time.Duration) (<-chan ingest.WatchResult, error) {
	return a.pipeline.Watch(ctx, path, debounce, a.Replace)
}

// Reset drops the index and clears the conversation.
func (a *Agent) Reset(ctx context.Context) error {
	a.askMu.Lock()
	defer a.askMu.Unlock()

	if err := a.index.Reset(ctx); err != nil {
		return err
	}
	a.memory.Clear()
	return nil
}

// ClearMemory forgets the conversation.
func (a *Agent) ClearMemory() {
	a.memory.Clear()
}

// MemorySummary describes the conversation so far.
func (a *Agent) MemorySummary() string {
	return a.memory.Summary()
}

// Memory exposes the conversation store.
func (a *Agent) Memory() memory.Store {
	return a.memory
}

// Status reports the index state, chunk count and up to sample stored chunks.
func (a *Agent) Status(ctx context.Context, sample int) (*Status, error) {
	state, err := a.index.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("index state: %w", err)
	}
	count, err := a.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("index count: %w", err)
	}

	st := &Status{
		State:    state,
		Chunks:   count,
		Settings: a.Settings(),
		Memory:   a.memory.Summary(),
	}
	if state == index.StateReady && sample > 0 {
		st.Sample, err = a.index.Sample(ctx, sample)
		if err != nil {
			return nil, fmt.Errorf("index sample: %w", err)
		}
	}
	return st, nil
}

func (a *Agent) currentBackend() engine.Backend {
	return a.engine.Backend()
}

func validate(temperature float64, topK int) error {
	if temperature < 0 || temperature > 1 {
		return fmt.Errorf("%w: temperature must be within [0, 1], got %v", ErrInvalidSettings, temperature)
	}
	if topK < retrieval.MinTopK || topK > retrieval.MaxTopK {
		return fmt.Errorf("%w: top_k must be within [%d, %d], got %d",
			ErrInvalidSettings, retrieval.MinTopK, retrieval.MaxTopK, topK)
	}
	return nil
}
