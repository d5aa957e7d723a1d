package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string // "local", "openai", "jina"; empty auto-detects
	Model     string
	APIKey    string
	Endpoint  string
	CacheSize int // 0 disables the cache
}

// New creates an embedder from cfg.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	var opts []RemoteOption
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, WithEndpoint(cfg.Endpoint))
	}

	var (
		e   Embedder
		err error
	)
	switch provider {
	case ProviderJina:
		e, err = NewJinaProvider(cfg.APIKey, opts...)
	case ProviderOpenAI:
		e, err = NewOpenAIProvider(cfg.APIKey, opts...)
	case ProviderLocal:
		e = NewLocalProvider()
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		e = WithCache(e, NewCache(cfg.CacheSize))
	}
	return e, nil
}

// NewFromEnv creates an embedder using DetectProvider and a default cache.
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider(), CacheSize: defaultCacheSize})
}

// DetectProvider picks a provider from the environment:
// CODECTX_EMBEDDING_PROVIDER, then whichever API key is set, then local.
func DetectProvider() string {
	if p := os.Getenv(EnvProvider); p != "" {
		return strings.ToLower(p)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
