//go:build !onnx

package main

import (
	"errors"

	"github.com/becomeliminal/nim-rag/config"
	"github.com/becomeliminal/nim-rag/index"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (index.Embedder, func(), error) {
	return nil, nil, errors.New("onnx embedder not available: rebuild with -tags onnx")
}
