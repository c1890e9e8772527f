// Package backend selects and builds the language model behind the agent.
//
// Models are grouped into families. A Factory holds one Provider per family,
// classifies a model name into a family and falls back to an explicit
// default family for names it does not recognize.
package backend

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/becomeliminal/nim-rag/engine"
)

// Family identifies a model vendor API.
type Family string

const (
	FamilyAnthropic Family = "anthropic"
	FamilyOpenAI    Family = "openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-opus-4-6"

// Provider builds backends for one model family.
type Provider interface {
	Family() Family
	New(ctx context.Context, model string) (engine.Backend, error)
}

// Classifier maps a model name to its family. ok is false for unknown names.
type Classifier func(model string) (family Family, ok bool)

// Classify is the default Classifier.
func Classify(model string) (Family, bool) {
	name := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(name, "claude"):
		return FamilyAnthropic, true
	case strings.HasPrefix(name, "gpt"),
		strings.HasPrefix(name, "o1"),
		strings.HasPrefix(name, "o3"),
		strings.HasPrefix(name, "o4"):
		return FamilyOpenAI, true
	default:
		return "", false
	}
}

// Factory holds the registered providers and creates backends on demand.
type Factory struct {
	mu        sync.RWMutex
	providers map[Family]Provider
	classify  Classifier
	fallback  Family
}

// NewFactory constructs a factory seeded with the given providers. Unknown
// model names fall back to FamilyAnthropic.
func NewFactory(providers ...Provider) *Factory {
	f := &Factory{
		providers: make(map[Family]Provider, len(providers)),
		classify:  Classify,
		fallback:  FamilyAnthropic,
	}
	for _, p := range providers {
		f.Register(p)
	}
	return f
}

// Register attaches or replaces the provider for p's family.
func (f *Factory) Register(p Provider) {
	if p == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[p.Family()] = p
}

// SetClassifier replaces the model name classifier.
func (f *Factory) SetClassifier(c Classifier) {
	if c == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classify = c
}

// SetFallback sets the family used for unrecognized model names.
func (f *Factory) SetFallback(family Family) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = family
}

// Families returns the registered families, sorted.
func (f *Factory) Families() []Family {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Family, 0, len(f.providers))
	for fam := range f.providers {
		out = append(out, fam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve returns the family that would serve model.
func (f *Factory) Resolve(model string) Family {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if fam, ok := f.classify(model); ok {
		return fam
	}
	return f.fallback
}

// New builds a backend for model. An empty name selects DefaultModel.
func (f *Factory) New(ctx context.Context, model string) (engine.Backend, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	f.mu.RLock()
	family, known := f.classify(model)
	if !known {
		family = f.fallback
	}
	provider := f.providers[family]
	f.mu.RUnlock()

	if !known {
		log.Printf("[BACKEND] Unrecognized model %q, falling back to %s", model, family)
	}
	if provider == nil {
		return nil, fmt.Errorf("no provider registered for model family %q", family)
	}

	b, err := provider.New(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("create %s backend for %s: %w", family, model, err)
	}
	log.Printf("[BACKEND] Using %s model %s", family, model)
	return b, nil
}
