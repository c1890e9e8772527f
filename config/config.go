// Package config loads the nim-rag configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvModel        = "NIM_RAG_MODEL"
)

// EmbedderConfig selects and configures the text embedder.
type EmbedderConfig struct {
	// Provider is one of "openai", "onnx" or "mock".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	BatchSize  int    `yaml:"batch_size,omitempty"`

	// CacheSize bounds the query embedding cache. Zero disables it.
	CacheSize int64 `yaml:"cache_size"`

	// Local model files, used by the onnx provider.
	ModelPath     string `yaml:"model_path,omitempty"`
	TokenizerPath string `yaml:"tokenizer_path,omitempty"`
	LibraryPath   string `yaml:"library_path,omitempty"`
}

// ServerConfig configures the websocket and health endpoints.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Config is the root configuration.
type Config struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopK        int     `yaml:"top_k"`

	MaxTurns int           `yaml:"max_turns"`
	Timeout  time.Duration `yaml:"timeout"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	IndexDir   string `yaml:"index_dir"`
	Collection string `yaml:"collection"`

	Embedder EmbedderConfig `yaml:"embedder"`
	Server   ServerConfig   `yaml:"server"`

	// API keys come from the environment only.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:        "claude-opus-4-6",
		Temperature:  0.7,
		TopK:         5,
		MaxTurns:     8,
		ChunkSize:    800,
		ChunkOverlap: 150,
		IndexDir:     "./chroma_db",
		Collection:   "documents",
		Embedder: EmbedderConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			CacheSize: 4096,
		},
		Server: ServerConfig{
			Addr:     ":8080",
			GRPCAddr: ":9090",
		},
	}
}

// Load reads a config from path over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv reads API keys and the model override from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAnthropicKey); v != "" {
		c.AnthropicAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		c.Model = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 1], got %v", c.Temperature))
	}
	if c.TopK < 1 || c.TopK > 10 {
		errs = append(errs, fmt.Errorf("top_k must be within [1, 10], got %d", c.TopK))
	}
	if c.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap must be within [0, chunk_size), got %d", c.ChunkOverlap))
	}
	if c.IndexDir == "" {
		errs = append(errs, errors.New("index_dir is required"))
	}
	switch c.Embedder.Provider {
	case "openai", "onnx", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider))
	}
	if c.Embedder.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("embedder.cache_size must not be negative, got %d", c.Embedder.CacheSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
