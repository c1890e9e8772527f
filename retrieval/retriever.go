// Package retrieval applies query-time policy on top of the vector index:
// how many chunks to fetch and how to present them to the reasoning loop.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-rag/core"
)

const (
	MinTopK     = 1
	MaxTopK     = 10
	DefaultTopK = 5

	// excerptLength is the number of runes of each chunk shown to the model.
	excerptLength = 300
)

// Sentinel observations. They are distinct from error text so the model can
// tell "nothing matched" apart from "retrieval failed".
const (
	NoDocumentsFound = "No relevant documents found."
	NoDocumentLoaded = "No document loaded. The document index is empty; ask the user to upload a document first."
)

// Searcher is the part of the vector index the retriever needs: the scored
// and the plain query mode.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]core.ScoredChunk, error)
	QueryChunks(ctx context.Context, text string, k int) ([]core.Chunk, error)
}

// Retriever fetches the chunks most relevant to a query.
type Retriever struct {
	index Searcher
	topK  func() int
}

// New creates a retriever. topK is read on every call so setting changes
// take effect immediately; nil means DefaultTopK.
func New(index Searcher, topK func() int) *Retriever {
	if topK == nil {
		topK = func() int { return DefaultTopK }
	}
	return &Retriever{index: index, topK: topK}
}

// ClampTopK bounds k to [MinTopK, MaxTopK].
func ClampTopK(k int) int {
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// TopK returns the current effective k.
func (r *Retriever) TopK() int {
	return ClampTopK(r.topK())
}

// Scored returns up to k chunks with their scores, highest first.
// Errors propagate to the caller.
func (r *Retriever) Scored(ctx context.Context, query string, k int) ([]core.ScoredChunk, error) {
	return r.index.Query(ctx, query, k)
}

// Retrieve returns the current top-k chunks for query without scores.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]core.Chunk, error) {
	return r.index.QueryChunks(ctx, query, r.TopK())
}

// Format retrieves for query and renders the result as text for the model.
// It never fails: errors become descriptive text.
func (r *Retriever) Format(ctx context.Context, query string) string {
	chunks, err := r.Retrieve(ctx, query)
	if err != nil {
		if errors.Is(err, core.ErrIndexNotReady) {
			return NoDocumentLoaded
		}
		return fmt.Sprintf("Error retrieving documents: %v", err)
	}
	return FormatChunks(chunks)
}

// FormatChunks renders chunks as numbered excerpts.
func FormatChunks(chunks []core.Chunk) string {
	if len(chunks) == 0 {
		return NoDocumentsFound
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant documents:\n", len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[Document %d]\n%s...\n", i+1, Excerpt(c.Text, excerptLength))
	}
	return b.String()
}

// Excerpt flattens newlines and keeps at most n runes of text.
func Excerpt(text string, n int) string {
	flat := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n])
}
