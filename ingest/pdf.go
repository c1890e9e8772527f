package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/becomeliminal/nim-rag/core"
)

// PDFLoader extracts page text from PDF files.
type PDFLoader struct{}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Load reads every page of the PDF. Decoding failures, including panics raised
// by the reader on malformed input, are reported as core.ErrDocumentParse.
func (l *PDFLoader) Load(ctx context.Context, path string) (pages []Page, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, fmt.Errorf("open %s: %w", path, statErr)
	}

	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", core.ErrDocumentParse, path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDocumentParse, path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", core.ErrDocumentParse, path, i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Sanitizer rewrites a document that failed to parse into a cleaner copy.
// The returned cleanup func removes the copy.
type Sanitizer interface {
	Sanitize(ctx context.Context, path string) (string, func(), error)
}

// PDFSanitizer re-serializes a PDF with pdfcpu, dropping structures it cannot
// validate. Non-PDF files are rejected.
type PDFSanitizer struct {
	// TempDir holds sanitized copies. Empty means os.TempDir().
	TempDir string
}

// Sanitize writes a rewritten copy of path and returns its location.
func (s *PDFSanitizer) Sanitize(ctx context.Context, path string) (string, func(), error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", nil, fmt.Errorf("sanitize %s: unsupported file type", path)
	}

	dir, err := os.MkdirTemp(s.TempDir, "nim-rag-sanitized-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	out := filepath.Join(dir, "sanitized_"+filepath.Base(path))
	if err := api.OptimizeFile(path, out, nil); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("rewrite %s: %w", path, err)
	}

	log.Printf("[INGEST] Sanitized %s -> %s", path, out)
	return out, cleanup, nil
}
