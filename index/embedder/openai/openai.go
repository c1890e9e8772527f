// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-rag/core"
)

// DefaultBatchSize caps the number of inputs sent per request.
const DefaultBatchSize = 96

// Config configures the OpenAI embedder.
type Config struct {
	APIKey string

	// Model defaults to text-embedding-3-small.
	Model string

	// BaseURL overrides the API endpoint (proxies, Azure-compatible gateways).
	BaseURL string

	// Dimensions is the size of the returned vectors (default: 1536).
	Dimensions int

	// BatchSize caps inputs per request (default: DefaultBatchSize).
	BatchSize int
}

// Embedder generates embeddings using the OpenAI API.
type Embedder struct {
	client     *goopenai.Client
	model      goopenai.EmbeddingModel
	dimensions int
	batchSize  int
}

// New creates a new OpenAI embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: APIKey is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      goopenai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}, nil
}

// Embed converts a single text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in order, splitting them into requests of at most BatchSize inputs.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts[start:end],
			Model: e.model,
		})
		if err != nil {
			return nil, &core.BackendError{Provider: "openai", Op: "embed", Err: err}
		}
		if len(resp.Data) != end-start {
			return nil, &core.BackendError{
				Provider: "openai",
				Op:       "embed",
				Err:      fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), end-start),
			}
		}

		data := resp.Data
		sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		for _, d := range data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
