package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-rag/core"
)

// memIndexer is an Indexer that keeps chunks in a slice.
type memIndexer struct {
	chunks []core.Chunk
	addErr error
	resets int
}

func (m *memIndexer) Count(ctx context.Context) (int, error) {
	return len(m.chunks), nil
}

func (m *memIndexer) Add(ctx context.Context, chunks []core.Chunk) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memIndexer) Reset(ctx context.Context) error {
	m.resets++
	m.chunks = nil
	return nil
}

// scriptedLoader fails with a parse error for paths in broken.
type scriptedLoader struct {
	broken map[string]bool
	loaded []string
}

func (l *scriptedLoader) Load(ctx context.Context, path string) ([]Page, error) {
	l.loaded = append(l.loaded, path)
	if l.broken[path] {
		return nil, fmt.Errorf("%w: %s: xref table broken", core.ErrDocumentParse, path)
	}
	return []Page{{Number: 1, Text: "recovered text from " + filepath.Base(path)}}, nil
}

type loaderFunc func(ctx context.Context, path string) ([]Page, error)

func (f loaderFunc) Load(ctx context.Context, path string) ([]Page, error) { return f(ctx, path) }

type fakeSanitizer struct {
	out     string
	err     error
	calls   int
	cleaned int
}

func (s *fakeSanitizer) Sanitize(ctx context.Context, path string) (string, func(), error) {
	s.calls++
	if s.err != nil {
		return "", nil, s.err
	}
	return s.out, func() { s.cleaned++ }, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPipeline_IngestTextDocument(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)

	text := strings.Repeat("Refunds are accepted within thirty days. ", 50)
	n, err := p.Ingest(context.Background(), writeFile(t, "policy.txt", text))
	require.NoError(t, err)
	require.Equal(t, len(idx.chunks), n)
	require.Greater(t, n, 1)

	for i, c := range idx.chunks {
		require.Equal(t, core.ChunkID(i), c.ID)
		require.Equal(t, i, c.Index)
		require.Equal(t, "policy.txt", c.Source)
		require.Equal(t, 1, c.Page)
		require.LessOrEqual(t, len([]rune(c.Text)), DefaultChunkSize)
	}
}

func TestPipeline_IDsContinueAcrossDocuments(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)

	first, err := p.Ingest(context.Background(), writeFile(t, "a.txt", "alpha document"))
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), writeFile(t, "b.txt", "beta document"))
	require.NoError(t, err)

	require.Equal(t, core.ChunkID(first), idx.chunks[first].ID)
	require.Equal(t, "b.txt", idx.chunks[first].Source)
}

func TestPipeline_SkipsBlankPages(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)

	_, err := p.Ingest(context.Background(), writeFile(t, "paged.txt", "page one\f  \n\t \fpage three"))
	require.NoError(t, err)
	require.Len(t, idx.chunks, 2)
	require.Equal(t, 1, idx.chunks[0].Page)
	require.Equal(t, 3, idx.chunks[1].Page)
}

func TestPipeline_EmptyDocumentIsParseError(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)

	_, err := p.Ingest(context.Background(), writeFile(t, "blank.txt", "   \n\n  "))
	require.ErrorIs(t, err, core.ErrDocumentParse)
	require.Empty(t, idx.chunks)
}

func TestPipeline_StoreFailureCommitsNothing(t *testing.T) {
	idx := &memIndexer{addErr: errors.New("disk full")}
	p := NewPipeline(idx)

	n, err := p.Ingest(context.Background(), writeFile(t, "doc.txt", "some text"))
	require.Error(t, err)
	require.Zero(t, n)
	require.Empty(t, idx.chunks)
}

func TestPipeline_SanitizesAndRetriesOnce(t *testing.T) {
	loader := &scriptedLoader{broken: map[string]bool{"broken.pdf": true}}
	san := &fakeSanitizer{out: "clean.pdf"}
	idx := &memIndexer{}
	p := NewPipeline(idx, WithLoader(loader), WithSanitizer(san))

	n, err := p.Ingest(context.Background(), "broken.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"broken.pdf", "clean.pdf"}, loader.loaded)
	require.Equal(t, 1, san.calls)
	require.Equal(t, 1, san.cleaned)
	require.Equal(t, "broken.pdf", idx.chunks[0].Source)
}

func TestPipeline_RetryFailureIsParseError(t *testing.T) {
	loader := &scriptedLoader{broken: map[string]bool{"broken.pdf": true, "clean.pdf": true}}
	san := &fakeSanitizer{out: "clean.pdf"}
	idx := &memIndexer{}
	p := NewPipeline(idx, WithLoader(loader), WithSanitizer(san))

	_, err := p.Ingest(context.Background(), "broken.pdf")
	require.ErrorIs(t, err, core.ErrDocumentParse)
	require.Len(t, loader.loaded, 2)
	require.Empty(t, idx.chunks)
}

func TestPipeline_SanitizerFailureIsParseError(t *testing.T) {
	loader := &scriptedLoader{broken: map[string]bool{"broken.pdf": true}}
	san := &fakeSanitizer{err: errors.New("not a pdf")}
	p := NewPipeline(&memIndexer{}, WithLoader(loader), WithSanitizer(san))

	_, err := p.Ingest(context.Background(), "broken.pdf")
	require.ErrorIs(t, err, core.ErrDocumentParse)
	require.Len(t, loader.loaded, 1)
}

func TestPipeline_MissingFileIsParseErrorWithoutSanitizing(t *testing.T) {
	san := &fakeSanitizer{out: "unused"}
	idx := &memIndexer{}
	p := NewPipeline(idx, WithSanitizer(san))

	_, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.ErrorIs(t, err, core.ErrDocumentParse)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, san.calls)
	require.Empty(t, idx.chunks)
}

func TestPipeline_CanceledLoadIsNotParseError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(&memIndexer{}, WithLoader(loaderFunc(func(ctx context.Context, path string) ([]Page, error) {
		return nil, ctx.Err()
	})))

	_, err := p.Ingest(ctx, "doc.txt")
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, IsParseError(err))
}

func TestPipeline_MalformedPDFIsParseError(t *testing.T) {
	p := NewPipeline(&memIndexer{}, WithSanitizer(&PDFSanitizer{TempDir: t.TempDir()}))

	_, err := p.Ingest(context.Background(), writeFile(t, "bad.pdf", "this is not a pdf at all"))
	require.ErrorIs(t, err, core.ErrDocumentParse)
}

func TestPipeline_Replace(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)
	path := writeFile(t, "doc.txt", "replace me")

	_, err := p.Ingest(context.Background(), path)
	require.NoError(t, err)
	n, err := p.Replace(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 1, idx.resets)
	require.Len(t, idx.chunks, n)
	require.Equal(t, core.ChunkID(0), idx.chunks[0].ID)
}

func TestPipeline_WatchReingestsOnWrite(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)
	path := writeFile(t, "live.txt", "first version")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, err := p.Watch(ctx, path, 20*time.Millisecond, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("second version"), 0o644))

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		require.Equal(t, 1, r.Chunks)
	case <-time.After(5 * time.Second):
		t.Fatal("no re-ingest after write")
	}

	// The channel closes once the watcher goroutine has exited.
	cancel()
	for range results {
	}
	require.GreaterOrEqual(t, idx.resets, 1)
	require.Equal(t, "second version", idx.chunks[0].Text)
}

func TestPipeline_WatchUsesGivenReplace(t *testing.T) {
	idx := &memIndexer{}
	p := NewPipeline(idx)
	path := writeFile(t, "live.txt", "first version")

	calls := make(chan string, 8)
	replace := func(ctx context.Context, got string) (int, error) {
		calls <- got
		return 7, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, err := p.Watch(ctx, path, 20*time.Millisecond, replace)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("second version"), 0o644))

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		require.Equal(t, 7, r.Chunks)
	case <-time.After(5 * time.Second):
		t.Fatal("no re-ingest after write")
	}
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	require.Equal(t, abs, <-calls)

	cancel()
	for range results {
	}
	require.Zero(t, idx.resets)
	require.Empty(t, idx.chunks)
}
