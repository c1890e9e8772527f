package main

import (
	"context"
	"fmt"
	"log"

	"github.com/becomeliminal/nim-rag/agent"
	"github.com/becomeliminal/nim-rag/backend"
	"github.com/becomeliminal/nim-rag/backend/anthropic"
	"github.com/becomeliminal/nim-rag/backend/openai"
	"github.com/becomeliminal/nim-rag/config"
	"github.com/becomeliminal/nim-rag/core"
	"github.com/becomeliminal/nim-rag/index"
	"github.com/becomeliminal/nim-rag/index/embedder/cache"
	"github.com/becomeliminal/nim-rag/index/embedder/mock"
	openaiembed "github.com/becomeliminal/nim-rag/index/embedder/openai"
	"github.com/becomeliminal/nim-rag/index/store/chromem"
	"github.com/becomeliminal/nim-rag/ingest"
)

// app holds the components built from the configuration.
type app struct {
	index    *index.Index
	pipeline *ingest.Pipeline
	cleanup  []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// buildIndex opens the persistent index and the ingestion pipeline.
func buildIndex(cfg *config.Config) (*app, error) {
	emb, closeEmb, err := buildEmbedder(cfg.Embedder, cfg.OpenAIAPIKey)
	if err != nil {
		return nil, err
	}
	a := &app{}
	if closeEmb != nil {
		a.cleanup = append(a.cleanup, closeEmb)
	}

	if cfg.Embedder.CacheSize > 0 {
		cached, err := cache.New(emb, cfg.Embedder.CacheSize)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.cleanup = append(a.cleanup, cached.Close)
		emb = cached
	}

	store, err := chromem.NewPersistent(cfg.IndexDir, cfg.Collection)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.index = index.New(store, emb)
	a.cleanup = append(a.cleanup, func() { a.index.Close() })

	splitter, err := ingest.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = ingest.NewPipeline(a.index, ingest.WithSplitter(splitter))
	return a, nil
}

func buildEmbedder(cfg config.EmbedderConfig, openAIKey string) (index.Embedder, func(), error) {
	switch cfg.Provider {
	case "openai":
		e, err := openaiembed.New(openaiembed.Config{
			APIKey:     openAIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[INDEX] Using OpenAI embeddings (%s)", cfg.Model)
		return e, nil, nil
	case "onnx":
		return newONNXEmbedder(cfg)
	case "mock":
		log.Printf("[INDEX] Using offline hashing embeddings")
		return mock.NewWithDimensions(cfg.Dimensions), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func buildFactory(cfg *config.Config) *backend.Factory {
	return backend.NewFactory(
		&anthropic.Provider{APIKey: cfg.AnthropicAPIKey},
		&openai.Provider{APIKey: cfg.OpenAIAPIKey},
	)
}

// buildAgent opens the index and creates the agent on top of it.
func buildAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, *app, error) {
	a, err := buildIndex(cfg)
	if err != nil {
		return nil, nil, err
	}
	ag, err := agent.New(ctx, agent.Config{
		Settings: core.Settings{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			TopK:        cfg.TopK,
		},
		Factory:  buildFactory(cfg),
		Index:    a.index,
		Pipeline: a.pipeline,
		MaxTurns: cfg.MaxTurns,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return ag, a, nil
}
