// Package config loads codectx configuration from YAML.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/dshills/codectx/internal/embedder"
	"github.com/dshills/codectx/internal/indexer"
	"github.com/dshills/codectx/pkg/types"
)

// File names searched by LoadFromDir, in order.
const (
	FileName = "codectx.yaml"
	DirName  = ".codectx"
)

// Config holds all configuration for codectx.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Include          []string `yaml:"include"`
	Exclude          []string `yaml:"exclude"`
	MaxFileSize      int64    `yaml:"max_file_size"`
	MaxFiles         int      `yaml:"max_files"`
	Languages        []string `yaml:"languages"` // empty = every registered language
	IncludeTests     bool     `yaml:"include_tests"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	Workers          int      `yaml:"workers"`
}

// RetrieveConfig holds retrieval pipeline configuration.
type RetrieveConfig struct {
	TokenBudget      int  `yaml:"token_budget"`
	MaxResults       int  `yaml:"max_results"`
	BM25PreFilter    int  `yaml:"bm25_prefilter"`
	EmbeddingRerank  int  `yaml:"embedding_rerank"`
	GraphExpansion   int  `yaml:"graph_expansion"`
	IncludeNeighbors bool `yaml:"include_neighbors"`
	IncludeTests     bool `yaml:"include_tests"`
	IncludeConfig    bool `yaml:"include_config"`
	SimilarityCache  int  `yaml:"similarity_cache"`
}

// EmbeddingConfig selects the embedding provider used by semantic rerank.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "local", "openai", "jina"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	CacheSize int    `yaml:"cache_size"`
}

// StorageConfig controls the on-disk snapshot store.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // relative paths resolve against the project root
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Exclude: []string{
				"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/dist/**",
				"**/build/**", "**/__pycache__/**", "**/*.min.js", "**/.codectx/**",
			},
			MaxFileSize:      1 << 20,
			MaxFiles:         10000,
			IncludeTests:     true,
			RespectGitignore: true,
			Workers:          runtime.NumCPU(),
		},
		Retrieve: RetrieveConfig{
			TokenBudget:      types.DefaultTokenBudget,
			MaxResults:       types.DefaultMaxResults,
			BM25PreFilter:    types.DefaultBM25PreFilter,
			EmbeddingRerank:  types.DefaultEmbeddingRerank,
			GraphExpansion:   types.DefaultGraphExpansion,
			IncludeNeighbors: true,
			SimilarityCache:  4096,
		},
		Embedding: EmbeddingConfig{
			Enabled:   true,
			Provider:  "local",
			CacheSize: 10000,
		},
		Storage: StorageConfig{
			Enabled: false,
			Path:    filepath.Join(DirName, "index.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, types.NewConfigError(path, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for codectx.yaml, then .codectx/config.yaml, in dir.
func LoadFromDir(dir string) (*Config, error) {
	for _, p := range []string{
		filepath.Join(dir, FileName),
		filepath.Join(dir, DirName, "config.yaml"),
	} {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return DefaultConfig(), nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks value ranges. The first problem found is returned as a *types.ConfigError.
func (c *Config) Validate() error {
	switch {
	case c.Index.MaxFileSize < 0:
		return types.NewConfigError("index.max_file_size", "must be >= 0")
	case c.Index.MaxFiles < 0:
		return types.NewConfigError("index.max_files", "must be >= 0")
	case c.Index.Workers < 0:
		return types.NewConfigError("index.workers", "must be >= 0")
	case c.Retrieve.TokenBudget < 0:
		return types.NewConfigError("retrieve.token_budget", "must be >= 0")
	case c.Retrieve.MaxResults < 0:
		return types.NewConfigError("retrieve.max_results", "must be >= 0")
	case c.Retrieve.BM25PreFilter < 0, c.Retrieve.EmbeddingRerank < 0, c.Retrieve.GraphExpansion < 0:
		return types.NewConfigError("retrieve", "candidate caps must be >= 0")
	}

	switch c.Embedding.Provider {
	case "", "local", "openai", "jina":
	default:
		return types.NewConfigError("embedding.provider", "unknown provider "+c.Embedding.Provider)
	}
	return nil
}

// RetrievalOptions converts the retrieve section into pipeline options.
func (c *Config) RetrievalOptions() types.RetrievalOptions {
	return types.RetrievalOptions{
		MaxResults:       c.Retrieve.MaxResults,
		BM25PreFilter:    c.Retrieve.BM25PreFilter,
		EmbeddingRerank:  c.Retrieve.EmbeddingRerank,
		GraphExpansion:   c.Retrieve.GraphExpansion,
		IncludeNeighbors: c.Retrieve.IncludeNeighbors,
		IncludeTests:     c.Retrieve.IncludeTests,
		IncludeConfig:    c.Retrieve.IncludeConfig,
	}
}

// StoragePath resolves the snapshot database path against root.
func (c *Config) StoragePath(root string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(root, c.Storage.Path)
}

// IndexerConfig converts the index section into indexer settings. An empty
// language list means every registered language.
func (c *Config) IndexerConfig() *indexer.Config {
	var langs []string
	if len(c.Index.Languages) > 0 {
		langs = append(langs, c.Index.Languages...)
	}
	return &indexer.Config{
		Include:          append([]string(nil), c.Index.Include...),
		Exclude:          append([]string(nil), c.Index.Exclude...),
		MaxFileSize:      c.Index.MaxFileSize,
		MaxFiles:         c.Index.MaxFiles,
		Languages:        langs,
		IncludeTests:     c.Index.IncludeTests,
		RespectGitignore: c.Index.RespectGitignore,
		Workers:          c.Index.Workers,
	}
}

// EmbedderConfig converts the embedding section into provider settings. The
// API key is read from APIKeyEnv when set; otherwise providers fall back to
// their own environment variables.
func (c *Config) EmbedderConfig() embedder.Config {
	key := ""
	if c.Embedding.APIKeyEnv != "" {
		key = os.Getenv(c.Embedding.APIKeyEnv)
	}
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		APIKey:    key,
		CacheSize: c.Embedding.CacheSize,
	}
}
