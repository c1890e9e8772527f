package chromem

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/index"
)

// DefaultCollection is the collection name used when none is given.
const DefaultCollection = "documents"

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
//
// The collection is created lazily on the first Add, so a fresh store
// reports index.StateAbsent until something is written.
type ChromemStore struct {
	db   *chromem.DB
	name string
	col  *chromem.Collection
	mu   sync.RWMutex
}

// New creates an in-memory store.
func New(name string) (*ChromemStore, error) {
	if name == "" {
		name = DefaultCollection
	}
	return &ChromemStore{
		db:   chromem.NewDB(),
		name: name,
	}, nil
}

// NewPersistent opens (or creates) a store persisted under dir.
// An existing collection with the given name is picked up as is.
func NewPersistent(dir, name string) (*ChromemStore, error) {
	if name == "" {
		name = DefaultCollection
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", dir, err)
	}
	s := &ChromemStore{db: db, name: name}
	// Embeddings are always supplied by the caller, so no embedding func is needed.
	s.col = db.GetCollection(name, nil)
	if s.col != nil {
		log.Printf("[CHROMEM] Opened collection %q with %d documents", name, s.col.Count())
	}
	return s, nil
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	s.mu.RLock()
	col := s.col
	s.mu.RUnlock()
	if col != nil {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.col != nil {
		return s.col, nil
	}

	col, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.col = col
	return col, nil
}

// Add writes chunks with their embeddings. If the write fails, the IDs that
// may have been written are deleted again.
func (s *ChromemStore) Add(ctx context.Context, chunks []core.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("got %d chunks and %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	col, err := s.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: embeddings[i],
			Metadata:  chunkMetadata(c),
		}
	}

	log.Printf("[CHROMEM] Adding %d documents to %q", len(docs), s.name)

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		if derr := col.Delete(context.Background(), nil, nil, ids...); derr != nil {
			log.Printf("[CHROMEM] Rollback failed: %v", derr)
		}
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Query returns the k nearest chunks to embedding.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int) ([]core.ScoredChunk, error) {
	s.mu.RLock()
	col := s.col
	s.mu.RUnlock()
	if col == nil || col.Count() == 0 {
		return nil, fmt.Errorf("%w: collection %q is empty", core.ErrIndexNotReady, s.name)
	}
	if k > col.Count() {
		k = col.Count()
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]core.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, core.ScoredChunk{
			Chunk: chunkFromDocument(r.ID, r.Content, r.Metadata),
			Score: r.Similarity,
		})
	}
	return out, nil
}

// Get returns the chunks with the given IDs. Unknown IDs are skipped.
func (s *ChromemStore) Get(ctx context.Context, ids ...string) ([]core.Chunk, error) {
	s.mu.RLock()
	col := s.col
	s.mu.RUnlock()
	if col == nil {
		return nil, nil
	}

	var out []core.Chunk
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, chunkFromDocument(doc.ID, doc.Content, doc.Metadata))
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.col == nil {
		return 0, nil
	}
	return s.col.Count(), nil
}

// State reports whether the collection exists and holds data.
func (s *ChromemStore) State(ctx context.Context) (index.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.col == nil:
		return index.StateAbsent, nil
	case s.col.Count() == 0:
		return index.StateEmpty, nil
	default:
		return index.StateReady, nil
	}
}

// Reset drops the collection. The next Add recreates it.
func (s *ChromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col == nil {
		return nil
	}
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	s.col = nil
	log.Printf("[CHROMEM] Dropped collection %q", s.name)
	return nil
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go persists on every write, nothing to flush
	return nil
}

func chunkMetadata(c core.Chunk) map[string]string {
	return map[string]string{
		"source": c.Source,
		"page":   strconv.Itoa(c.Page),
		"offset": strconv.Itoa(c.Offset),
		"index":  strconv.Itoa(c.Index),
	}
}

func chunkFromDocument(id, content string, md map[string]string) core.Chunk {
	page, _ := strconv.Atoi(md["page"])
	offset, _ := strconv.Atoi(md["offset"])
	idx, _ := strconv.Atoi(md["index"])
	return core.Chunk{
		ID:     id,
		Text:   content,
		Source: md["source"],
		Page:   page,
		Offset: offset,
		Index:  idx,
	}
}
