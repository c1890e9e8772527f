//go:build onnx

package main

import (
	"log"

	"github.com/becomeliminal/nim-rag/config"
	"github.com/becomeliminal/nim-rag/index"
	"github.com/becomeliminal/nim-rag/index/embedder/onnx"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (index.Embedder, func(), error) {
	e, err := onnx.New(onnx.Config{
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		LibraryPath:   cfg.LibraryPath,
		Dimensions:    cfg.Dimensions,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[INDEX] Using local ONNX embeddings (%s)", cfg.ModelPath)
	return e, func() { e.Close() }, nil
}
