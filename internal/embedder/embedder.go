package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is one vector and where it came from.
type Embedding struct {
	Vector   []float32
	Provider string
	Model    string
	Hash     string // content hash of the embedded text
}

// Embedder generates embeddings.
type Embedder interface {
	// Embed generates the embedding for one text.
	Embed(ctx context.Context, text string) (*Embedding, error)

	// EmbedBatch generates embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error)

	Dimension() int
	Provider() string
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

const defaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by provider, model and content hash.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a cache holding up to maxLen embeddings.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](defaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached embedding.
func (c *Cache) Get(key string) (*Embedding, bool) {
	emb, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	out := *emb
	out.Vector = append([]float32(nil), emb.Vector...)
	return &out, true
}

// Set stores an embedding.
func (c *Cache) Set(key string, emb *Embedding) {
	c.cache.Add(key, emb)
}

// Size returns the number of cached embeddings.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash returns the hex SHA-256 of text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// cachedEmbedder serves repeated texts from a Cache.
type cachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e so repeated texts are served from cache.
func WithCache(e Embedder, cache *Cache) Embedder {
	if cache == nil {
		return e
	}
	return &cachedEmbedder{Embedder: e, cache: cache}
}

func (c *cachedEmbedder) key(text string) string {
	return c.Provider() + "/" + c.Model() + "/" + ComputeHash(text)
}

func (c *cachedEmbedder) Embed(ctx context.Context, text string) (*Embedding, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if emb, ok := c.cache.Get(c.key(text)); ok {
		return emb, nil
	}
	emb, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.key(text), emb)
	return emb, nil
}

func (c *cachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	out := make([]*Embedding, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if emb, ok := c.cache.Get(c.key(text)); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.Embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(fresh), len(missing))
	}
	for k, emb := range fresh {
		out[slots[k]] = emb
		c.cache.Set(c.key(missing[k]), emb)
	}
	return out, nil
}

func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
