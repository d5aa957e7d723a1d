package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/dshills/codectx/internal/tokenize"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	EnvProvider     = "CODECTX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	LocalModel         = "hashed-bow-v1"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	MaxBatchSize = 100

	MaxAttempts       = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// RemoteProvider calls an OpenAI-compatible /v1/embeddings endpoint. Jina
// and OpenAI share the request and response shape.
type RemoteProvider struct {
	name       string
	apiKey     string
	model      string
	endpoint   string
	dimension  int
	httpClient *http.Client
	retry      RetryConfig
}

// RemoteOption configures a RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithEndpoint overrides the API URL.
func WithEndpoint(url string) RemoteOption {
	return func(p *RemoteProvider) { p.endpoint = url }
}

// WithModel overrides the model name.
func WithModel(model string) RemoteOption {
	return func(p *RemoteProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(p *RemoteProvider) { p.httpClient = c }
}

// WithRetry sets the backoff policy.
func WithRetry(cfg RetryConfig) RemoteOption {
	return func(p *RemoteProvider) { p.retry = cfg }
}

// NewJinaProvider creates a Jina AI embedder. An empty apiKey falls back to
// JINA_API_KEY.
func NewJinaProvider(apiKey string, opts ...RemoteOption) (*RemoteProvider, error) {
	return newRemote(ProviderJina, apiKey, EnvJinaAPIKey, DefaultJinaModel, JinaEndpoint, JinaDimension, opts)
}

// NewOpenAIProvider creates an OpenAI embedder. An empty apiKey falls back to
// OPENAI_API_KEY.
func NewOpenAIProvider(apiKey string, opts ...RemoteOption) (*RemoteProvider, error) {
	return newRemote(ProviderOpenAI, apiKey, EnvOpenAIAPIKey, DefaultOpenAIModel, OpenAIEndpoint, OpenAIDimension, opts)
}

func newRemote(name, apiKey, env, model, endpoint string, dim int, opts []RemoteOption) (*RemoteProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(env)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, env)
	}
	p := &RemoteProvider{
		name:       name,
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		dimension:  dim,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *RemoteProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends texts in batches of at most MaxBatchSize.
func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	out := make([]*Embedding, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		batch := texts[start:min(start+MaxBatchSize, len(texts))]
		embs, err := retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
			return p.callAPI(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}
		out = append(out, embs...)
	}
	return out, nil
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, permanent(err)
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(apiResp.Data), len(texts))
	}

	sort.SliceStable(apiResp.Data, func(i, j int) bool { return apiResp.Data[i].Index < apiResp.Data[j].Index })
	model := apiResp.Model
	if model == "" {
		model = p.model
	}
	out := make([]*Embedding, len(apiResp.Data))
	for i, d := range apiResp.Data {
		out[i] = &Embedding{Vector: d.Embedding, Provider: p.name, Model: model, Hash: ComputeHash(texts[i])}
	}
	return out, nil
}

func (p *RemoteProvider) Dimension() int   { return p.dimension }
func (p *RemoteProvider) Provider() string { return p.name }
func (p *RemoteProvider) Model() string    { return p.model }

func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline by hashing its search terms and their
// adjacent pairs into a fixed-size vector (feature hashing). Texts sharing
// vocabulary land close together under cosine similarity.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates the offline embedder.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{dimension: LocalDimension}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, l.dimension)
	terms := tokenize.Words(text)
	for i, term := range terms {
		l.add(vec, term, 1)
		if i > 0 {
			l.add(vec, terms[i-1]+" "+term, 0.5)
		}
	}

	return &Embedding{
		Vector:   NormalizeVector(vec),
		Provider: ProviderLocal,
		Model:    LocalModel,
		Hash:     ComputeHash(text),
	}, nil
}

// add hashes feature into vec; one hash bit picks the sign so collisions
// tend to cancel.
func (l *LocalProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(l.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	out := make([]*Embedding, len(texts))
	for i, text := range texts {
		emb, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

func (l *LocalProvider) Dimension() int   { return l.dimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return LocalModel }
func (l *LocalProvider) Close() error     { return nil }

// NormalizeVector scales v to unit length. A zero vector is returned as is.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
