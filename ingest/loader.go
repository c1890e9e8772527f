// Package ingest turns a document on disk into chunks stored in the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/becomeliminal/nim-rag/core"
)

// Page is a page-level text block of a loaded document. Number starts at 1.
type Page struct {
	Number int
	Text   string
}

// Loader reads a document into pages.
type Loader interface {
	Load(ctx context.Context, path string) ([]Page, error)
}

// TextLoader loads plain text documents (.txt, .md).
// Form feeds split the file into pages.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// MultiLoader combines multiple loaders keyed by file extension.
type MultiLoader struct {
	loaders  map[string]Loader
	fallback Loader
}

// NewMultiLoader creates a loader that handles text and PDF files.
// Unknown extensions are read as text.
func NewMultiLoader() *MultiLoader {
	text := NewTextLoader()
	pdf := NewPDFLoader()
	m := &MultiLoader{
		loaders:  make(map[string]Loader),
		fallback: text,
	}
	for _, ext := range text.SupportedExtensions() {
		m.Register(ext, text)
	}
	for _, ext := range pdf.SupportedExtensions() {
		m.Register(ext, pdf)
	}
	return m
}

// Register adds or replaces the loader for an extension.
func (m *MultiLoader) Register(ext string, l Loader) {
	m.loaders[strings.ToLower(ext)] = l
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := m.loaders[ext]
	if !ok {
		loader = m.fallback
	}
	return loader.Load(ctx, path)
}

// IsParseError reports whether err is core.ErrDocumentParse. Loaders use it
// only for content that could not be decoded; a missing or unreadable file is
// a plain error until the pipeline wraps it.
func IsParseError(err error) bool {
	return err != nil && errors.Is(err, core.ErrDocumentParse)
}
