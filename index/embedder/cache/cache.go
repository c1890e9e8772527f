// Package cache memoizes embeddings of repeated texts, typically queries.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-rag/index"
)

// Embedder wraps another embedder with a ristretto cache keyed by text.
type Embedder struct {
	inner index.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding roughly maxEntries vectors.
func New(inner index.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost counts vectors, not ristretto's per-item overhead.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text or computes and stores it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, 1)
	return vec, nil
}

// EmbedBatch forwards to the wrapped embedder. Document batches are embedded
// once, so they are not cached.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return index.EmbedAll(ctx, e.inner, texts)
}

// Dimensions returns the embedding size of the wrapped embedder.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are visible.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
