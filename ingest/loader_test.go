package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedLoader string

func (n namedLoader) Load(ctx context.Context, path string) ([]Page, error) {
	return []Page{{Number: 1, Text: string(n)}}, nil
}

func TestMultiLoader_DispatchesByExtension(t *testing.T) {
	m := NewMultiLoader()
	for _, ext := range []string{".txt", ".md", ".markdown"} {
		require.IsType(t, &TextLoader{}, m.loaders[ext], ext)
	}
	require.IsType(t, &PDFLoader{}, m.loaders[".pdf"])

	m.Register(".DOCX", namedLoader("docx"))
	pages, err := m.Load(context.Background(), "report.docx")
	require.NoError(t, err)
	require.Equal(t, "docx", pages[0].Text)
}

func TestMultiLoader_UnknownExtensionReadsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ftwo"), 0o644))

	pages, err := NewMultiLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []Page{{Number: 1, Text: "one"}, {Number: 2, Text: "two"}}, pages)
}
