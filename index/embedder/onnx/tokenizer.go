//go:build onnx

package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// wordPieceTokenizer is a minimal BERT-style WordPiece tokenizer.
// It lowercases, splits on whitespace and strips surrounding punctuation.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

// loadTokenizer reads the vocabulary from a HuggingFace tokenizer.json.
func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("%s: empty vocabulary", path)
	}

	t := &wordPieceTokenizer{
		vocab:    file.Model.Vocab,
		clsToken: 101,
		sepToken: 102,
		unkToken: 100,
	}
	if id, ok := t.vocab["[CLS]"]; ok {
		t.clsToken = id
	}
	if id, ok := t.vocab["[SEP]"]; ok {
		t.sepToken = id
	}
	if id, ok := t.vocab["[UNK]"]; ok {
		t.unkToken = id
	}
	return t, nil
}

// Tokenize converts text to token IDs.
func (t *wordPieceTokenizer) Tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, piece := range t.pieces(word) {
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

// pieces splits word greedily into the longest known prefixes.
// Continuations carry the "##" marker.
func (t *wordPieceTokenizer) pieces(word string) []string {
	var out []string
	start := 0
	for start < len(word) {
		end := len(word)
		found := ""
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			out = append(out, "[UNK]")
			start++
			continue
		}
		out = append(out, found)
		start = end
	}
	return out
}
