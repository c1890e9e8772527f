package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentParse is returned when a document cannot be read even after sanitization.
	ErrDocumentParse = errors.New("document could not be parsed")

	// ErrIndexNotReady is returned when the vector index is queried before any document was ingested.
	ErrIndexNotReady = errors.New("vector index is not ready")

	// ErrBudgetExceeded is returned when the reasoning loop runs out of turns.
	ErrBudgetExceeded = errors.New("reasoning budget exceeded")
)

// BackendError wraps a failure of an external model provider
// (completion or embedding). It aborts the operation that triggered it.
type BackendError struct {
	Provider string
	Op       string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ToolExecutionError wraps a tool failure. The reasoning loop turns it into
// an observation instead of propagating it.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
