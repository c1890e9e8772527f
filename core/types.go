package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Chunk is a contiguous span of document text stored in the vector index.
// Chunks are immutable once written.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	// Offset is the rune offset of the chunk inside its page.
	Offset int `json:"offset"`
	// Index is the insertion order of the chunk in the collection.
	Index int `json:"index"`
}

// ChunkID returns the ID of the chunk at insertion position i.
// IDs sort in insertion order.
func ChunkID(i int) string {
	return fmt.Sprintf("chunk-%08d", i)
}

// ScoredChunk pairs a chunk with its similarity to a query. Higher is more relevant.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// Role identifies who authored a message or turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry of the conversation log.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Pair is a question with the answer that was produced for it.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ToolCall is a request from the model to invoke a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Message is one entry of a reasoning transcript.
//
// Assistant messages may carry ToolCalls. Tool messages carry the observation
// for a single call in Text and reference it with ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// Settings are the user-tunable parameters of the agent.
type Settings struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopK        int     `json:"top_k" yaml:"top_k"`
}

// Trace records a single thought-action-observation step of a reasoning session.
type Trace struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	TurnNumber  int               `json:"turn_number"`
	Thought     string            `json:"thought,omitempty"`
	Action      string            `json:"action"`
	ActionInput json.RawMessage   `json:"action_input"`
	Observation string            `json:"observation"`
	Success     bool              `json:"success"`
	DurationMs  int64             `json:"duration_ms"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// traceObservationPreview is the number of observation runes kept in log lines.
const traceObservationPreview = 120

// String renders the trace on one line for logs.
func (t *Trace) String() string {
	status := "ok"
	if !t.Success {
		status = "failed"
	}
	obs := strings.ReplaceAll(t.Observation, "\n", " ")
	if runes := []rune(obs); len(runes) > traceObservationPreview {
		obs = string(runes[:traceObservationPreview]) + "..."
	}
	return fmt.Sprintf("session=%s turn=%d action=%s status=%s duration=%dms thought=%q observation=%q",
		t.SessionID, t.TurnNumber, t.Action, status, t.DurationMs, t.Thought, obs)
}
