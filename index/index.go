// Package index stores chunk embeddings and answers similarity queries.
//
// Architecture:
//   - Store: vector storage backend (chromem-go, persistent or in-memory)
//   - Embedder: text-to-vector conversion (OpenAI, local ONNX model, or a
//     deterministic hashing embedder for tests)
//   - Index: ties the two together. Queries are embedded with the same
//     embedder used at ingestion.
package index

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/becomeliminal/nim-rag/core"
)

// State describes what the index currently holds.
type State int

const (
	// StateAbsent means no collection exists yet.
	StateAbsent State = iota
	// StateEmpty means the collection exists but holds no chunks.
	StateEmpty
	// StateReady means the collection holds at least one chunk.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Store is the vector storage backend.
type Store interface {
	// Add writes chunks with their embeddings. On failure nothing is kept.
	Add(ctx context.Context, chunks []core.Chunk, embeddings [][]float32) error

	// Query returns up to k chunks nearest to embedding, highest similarity first.
	// k must not exceed Count.
	Query(ctx context.Context, embedding []float32, k int) ([]core.ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// State reports whether the collection exists and holds data.
	State(ctx context.Context) (State, error)

	// Get returns the chunks with the given IDs, skipping unknown ones.
	Get(ctx context.Context, ids ...string) ([]core.Chunk, error)

	// Reset drops the collection.
	Reset(ctx context.Context) error

	Close() error
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}

// BatchEmbedder is implemented by embedders that can embed many texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index answers similarity queries over ingested chunks.
type Index struct {
	store    Store
	embedder Embedder
}

// New creates an Index over store, embedding with embedder.
func New(store Store, embedder Embedder) *Index {
	return &Index{store: store, embedder: embedder}
}

// Add embeds every chunk and then writes them in one call.
// An embedding failure leaves the store untouched.
func (x *Index) Add(ctx context.Context, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := EmbedAll(ctx, x.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if err := x.store.Add(ctx, chunks, embeddings); err != nil {
		return err
	}
	log.Printf("[INDEX] Added %d chunks", len(chunks))
	return nil
}

// Query returns up to k chunks ranked by similarity to text, highest first.
// k <= 0 yields no results and k above the chunk count yields every chunk.
// Querying an absent or empty index returns core.ErrIndexNotReady.
func (x *Index) Query(ctx context.Context, text string, k int) ([]core.ScoredChunk, error) {
	count, err := x.ready(ctx)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []core.ScoredChunk{}, nil
	}
	if k > count {
		k = count
	}

	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := x.store.Query(ctx, embedding, k)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// QueryChunks is Query without scores.
func (x *Index) QueryChunks(ctx context.Context, text string, k int) ([]core.Chunk, error) {
	scored, err := x.Query(ctx, text, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]core.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}

// Count returns the number of stored chunks. An absent collection counts as zero.
func (x *Index) Count(ctx context.Context) (int, error) {
	return x.store.Count(ctx)
}

// State reports whether the collection exists and holds data.
func (x *Index) State(ctx context.Context) (State, error) {
	return x.store.State(ctx)
}

// Exists reports whether a collection has been created.
func (x *Index) Exists(ctx context.Context) bool {
	s, err := x.store.State(ctx)
	return err == nil && s != StateAbsent
}

// HasData reports whether the collection holds at least one chunk.
func (x *Index) HasData(ctx context.Context) bool {
	s, err := x.store.State(ctx)
	return err == nil && s == StateReady
}

// Sample returns up to n stored chunks in insertion order.
func (x *Index) Sample(ctx context.Context, n int) ([]core.Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = core.ChunkID(i)
	}
	return x.store.Get(ctx, ids...)
}

// Reset removes every chunk.
func (x *Index) Reset(ctx context.Context) error {
	if err := x.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	log.Printf("[INDEX] Reset")
	return nil
}

// Close releases the store.
func (x *Index) Close() error {
	return x.store.Close()
}

func (x *Index) ready(ctx context.Context) (int, error) {
	state, err := x.store.State(ctx)
	if err != nil {
		return 0, err
	}
	if state != StateReady {
		return 0, fmt.Errorf("%w: collection is %s", core.ErrIndexNotReady, state)
	}
	return x.store.Count(ctx)
}

// EmbedAll embeds texts in order, batching when the embedder supports it.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if b, ok := e.(BatchEmbedder); ok {
		out, err := b.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
		}
		return out, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
