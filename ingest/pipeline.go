package ingest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/becomeliminal/nim-rag/core"
)

// Indexer is the part of the vector index the pipeline writes to.
// Add must embed every chunk before writing any of them and must leave the
// index unchanged when it fails.
type Indexer interface {
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, chunks []core.Chunk) error
	Reset(ctx context.Context) error
}

// Pipeline loads a document, splits it into chunks and writes them to the index.
// It holds no per-document state.
type Pipeline struct {
	loader    Loader
	sanitizer Sanitizer
	splitter  *Splitter
	index     Indexer
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLoader replaces the default MultiLoader.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) {
		p.loader = l
	}
}

// WithSanitizer replaces the default PDFSanitizer. Nil disables the retry.
func WithSanitizer(s Sanitizer) Option {
	return func(p *Pipeline) {
		p.sanitizer = s
	}
}

// WithSplitter replaces the default 800/150 splitter.
func WithSplitter(s *Splitter) Option {
	return func(p *Pipeline) {
		p.splitter = s
	}
}

// NewPipeline creates a pipeline writing to index.
func NewPipeline(index Indexer, opts ...Option) *Pipeline {
	splitter, _ := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	p := &Pipeline{
		loader:    NewMultiLoader(),
		sanitizer: &PDFSanitizer{},
		splitter:  splitter,
		index:     index,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest stores the chunks of the document at path and returns how many were written.
// On any error nothing is committed.
func (p *Pipeline) Ingest(ctx context.Context, path string) (int, error) {
	log.Printf("[INGEST] Loading %s", path)

	pages, err := p.load(ctx, path)
	if err != nil {
		return 0, err
	}

	existing, err := p.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}

	chunks := p.Chunk(filepath.Base(path), pages, existing)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s: no extractable text", core.ErrDocumentParse, path)
	}

	if err := p.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	log.Printf("[INGEST] Stored %d chunks from %d pages of %s", len(chunks), len(pages), path)
	return len(chunks), nil
}

// Replace clears the index and ingests the document at path.
func (p *Pipeline) Replace(ctx context.Context, path string) (int, error) {
	if err := p.index.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}
	return p.Ingest(ctx, path)
}

// Chunk splits pages into chunks. Whitespace-only pages are skipped.
// Index values continue from startIndex so IDs stay unique across documents.
func (p *Pipeline) Chunk(source string, pages []Page, startIndex int) []core.Chunk {
	var chunks []core.Chunk
	next := startIndex
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, seg := range p.splitter.Split(page.Text) {
			chunks = append(chunks, core.Chunk{
				ID:     core.ChunkID(next),
				Text:   seg.Text,
				Source: source,
				Page:   page.Number,
				Offset: seg.Start,
				Index:  next,
			})
			next++
		}
	}
	return chunks
}

// load reads the document, sanitizing and retrying once on a parse failure.
// A missing or unreadable file is a parse error too, but there is nothing to
// sanitize, so it is reported without a retry.
func (p *Pipeline) load(ctx context.Context, path string) ([]Page, error) {
	pages, err := p.loader.Load(ctx, path)
	if err == nil {
		return pages, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if !IsParseError(err) {
		return nil, fmt.Errorf("%w: %w", core.ErrDocumentParse, err)
	}
	if p.sanitizer == nil {
		return nil, err
	}

	log.Printf("[INGEST] Load failed, sanitizing and retrying: %v", err)
	clean, cleanup, serr := p.sanitizer.Sanitize(ctx, path)
	if serr != nil {
		return nil, fmt.Errorf("%w: %s: %v (sanitize: %v)", core.ErrDocumentParse, path, err, serr)
	}
	defer cleanup()

	pages, err = p.loader.Load(ctx, clean)
	if err != nil {
		if IsParseError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDocumentParse, path, err)
	}
	return pages, nil
}
