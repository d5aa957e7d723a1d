package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/codectx/internal/graph"
	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/internal/tokenize"
	"github.com/dshills/codectx/pkg/types"
)

var tracer = otel.Tracer("github.com/dshills/codectx/internal/retrieval")

// Pipeline stages
const (
	StageLexical  = "lexical"
	StageSemantic = "semantic"
	StageGraph    = "graph"
)

// Method labels
const (
	MethodBM25     = "bm25"
	MethodSemantic = "bm25+semantic"
	graphSuffix    = "+graph"
)

// Rerank blend weights
const (
	SemanticWeight = 0.7
	LexicalWeight  = 0.3
)

// DefaultSimilarityCacheSize is the number of (query, chunk) scores kept.
const DefaultSimilarityCacheSize = 4096

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("retrieval %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ChunkSource supplies the indexed project. *contextcache.Cache satisfies it.
type ChunkSource interface {
	Chunks() ([]types.CodeChunk, error)
	DependencyGraph() (*graph.Graph, error)
}

// SimilarityProvider scores texts against a query. Scores are expected in
// [-1, 1] or [0, 1]; negative values are treated as 0.
type SimilarityProvider interface {
	Similarity(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Orchestrator runs the retrieval pipeline over a ChunkSource.
type Orchestrator struct {
	source     ChunkSource
	similarity SimilarityProvider
	logger     *slog.Logger

	simCache     *lru.Cache[[32]byte, float64]
	simCacheSize int

	indexMu    sync.Mutex
	indexFirst *types.CodeChunk
	indexLen   int
	index      *lexicalIndex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSimilarityCacheSize sets how many similarity scores are cached.
// Zero disables the cache.
func WithSimilarityCacheSize(n int) Option {
	return func(o *Orchestrator) { o.simCacheSize = n }
}

// New creates an Orchestrator. similarity may be nil, in which case the
// semantic stage is skipped.
func New(source ChunkSource, similarity SimilarityProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:       source,
		similarity:   similarity,
		simCacheSize: DefaultSimilarityCacheSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrDiscard(o.logger)
	if o.simCacheSize > 0 {
		o.simCache, _ = lru.New[[32]byte, float64](o.simCacheSize)
	}
	return o
}

// Retrieve runs the pipeline for query and returns the selected chunks with
// their citations. Query fields override opts where both are set.
func (o *Orchestrator) Retrieve(ctx context.Context, query types.RetrievalQuery, opts types.RetrievalOptions) (*types.RetrievalResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "retrieval.Orchestrator.Retrieve",
		trace.WithAttributes(
			attribute.String("intent", query.Intent),
			attribute.String("anchor_file", query.AnchorFile),
			attribute.String("anchor_symbol", query.AnchorSymbol),
		))
	defer span.End()

	if err := query.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		return nil, err
	}

	opts = withDefaults(opts)
	includeTests, includeConfig := opts.IncludeTests, opts.IncludeConfig
	if query.IncludeTests != nil {
		includeTests = *query.IncludeTests
	}
	if query.IncludeConfig != nil {
		includeConfig = *query.IncludeConfig
	}
	keep := func(c *types.CodeChunk) bool {
		return (includeTests || !c.IsTest) && (includeConfig || !c.IsConfig)
	}
	budget := query.TokenBudget
	if budget == 0 {
		budget = types.DefaultTokenBudget
	}
	maxResults := query.MaxResults
	if maxResults == 0 {
		maxResults = opts.MaxResults
	}

	chunks, err := o.source.Chunks()
	if err != nil {
		return nil, o.fail(span, StageLexical, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, o.fail(span, StageLexical, err)
	}

	text := query.Intent
	if query.Context != "" {
		text += "\n" + query.Context
	}

	cands, err := o.lexical(ctx, chunks, text, keep, opts.BM25PreFilter)
	if err != nil {
		return nil, o.fail(span, StageLexical, err)
	}

	method := MethodBM25
	if o.similarity != nil && len(cands) > 0 {
		cands, err = o.rerank(ctx, text, cands, opts.EmbeddingRerank)
		if err != nil {
			return nil, o.fail(span, StageSemantic, err)
		}
		method = MethodSemantic
	}

	if opts.IncludeNeighbors && (query.AnchorFile != "" || query.AnchorSymbol != "") {
		var added bool
		cands, added, err = o.expand(ctx, chunks, query, cands, keep, opts.GraphExpansion)
		if err != nil {
			return nil, o.fail(span, StageGraph, err)
		}
		if added {
			method += graphSuffix
		}
	}

	selected, total := selectWithinBudget(cands, budget, maxResults)
	result := &types.RetrievalResult{
		Chunks:      make([]types.CodeChunk, len(selected)),
		Citations:   cite(selected),
		Method:      method,
		TotalTokens: total,
	}
	for i, c := range selected {
		result.Chunks[i] = *c.chunk
	}
	result.Confidence = confidence(result.Citations)
	result.ProcessingTime = time.Since(start)

	span.SetAttributes(
		attribute.String("method", method),
		attribute.Int("candidates", len(cands)),
		attribute.Int("selected", len(selected)),
		attribute.Int("tokens", total),
	)
	o.logger.Debug("retrieval complete",
		"method", method,
		"candidates", len(cands),
		"selected", len(selected),
		"tokens", total,
		"budget", budget,
		"duration", result.ProcessingTime)
	return result, nil
}

func withDefaults(opts types.RetrievalOptions) types.RetrievalOptions {
	if opts.MaxResults <= 0 {
		opts.MaxResults = types.DefaultMaxResults
	}
	if opts.BM25PreFilter <= 0 {
		opts.BM25PreFilter = types.DefaultBM25PreFilter
	}
	if opts.EmbeddingRerank <= 0 {
		opts.EmbeddingRerank = types.DefaultEmbeddingRerank
	}
	if opts.GraphExpansion <= 0 {
		opts.GraphExpansion = types.DefaultGraphExpansion
	}
	return opts
}

func (o *Orchestrator) fail(span trace.Span, stage string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" stage failed")
	o.logger.Warn("retrieval stage failed", "stage", stage, "error", err)
	return &StageError{Stage: stage, Err: err}
}

// lexical scores chunks with BM25 and keeps the top limit with a positive
// score. Relevance is the score normalised by the best score.
func (o *Orchestrator) lexical(ctx context.Context, chunks []types.CodeChunk, text string, keep func(*types.CodeChunk) bool, limit int) ([]candidate, error) {
	_, span := tracer.Start(ctx, "retrieval.lexical")
	defer span.End()

	terms := tokenize.Words(text)
	if len(terms) == 0 || len(chunks) == 0 {
		return nil, nil
	}

	idx := o.indexFor(chunks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores := idx.score(terms, func(doc int) bool { return keep(&chunks[doc]) })

	cands := make([]candidate, 0, len(scores))
	for doc, s := range scores {
		if s > 0 {
			cands = append(cands, candidate{chunk: &chunks[doc], lexical: s})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].lexical != cands[j].lexical {
			return cands[i].lexical > cands[j].lexical
		}
		return cands[i].chunk.ID < cands[j].chunk.ID
	})
	if len(cands) > limit {
		cands = cands[:limit]
	}
	if len(cands) > 0 {
		best := cands[0].lexical
		for i := range cands {
			cands[i].relevance = cands[i].lexical / best
		}
	}

	span.SetAttributes(attribute.Int("terms", len(terms)), attribute.Int("candidates", len(cands)))
	return cands, nil
}

// indexFor returns the BM25 index for chunks, rebuilding it only when the
// chunk slice changed. Snapshots never mutate a published slice.
func (o *Orchestrator) indexFor(chunks []types.CodeChunk) *lexicalIndex {
	o.indexMu.Lock()
	defer o.indexMu.Unlock()

	if o.index != nil && o.indexFirst == &chunks[0] && o.indexLen == len(chunks) {
		return o.index
	}
	o.index = newLexicalIndex(chunks)
	o.indexFirst = &chunks[0]
	o.indexLen = len(chunks)
	return o.index
}

// rerank rescores the top limit candidates by similarity to text and drops
// the rest.
func (o *Orchestrator) rerank(ctx context.Context, text string, cands []candidate, limit int) ([]candidate, error) {
	ctx, span := tracer.Start(ctx, "retrieval.semantic")
	defer span.End()

	if len(cands) > limit {
		cands = cands[:limit]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sims := make([]float64, len(cands))
	var (
		missing []string
		slots   []int
	)
	for i, c := range cands {
		if s, ok := o.cachedSimilarity(text, c.chunk); ok {
			sims[i] = s
			continue
		}
		missing = append(missing, c.chunk.Content)
		slots = append(slots, i)
	}

	if len(missing) > 0 {
		scores, err := o.similarity.Similarity(ctx, text, missing)
		if err != nil {
			return nil, err
		}
		if len(scores) != len(missing) {
			return nil, fmt.Errorf("similarity provider returned %d scores for %d texts", len(scores), len(missing))
		}
		for k, s := range scores {
			sims[slots[k]] = s
			o.storeSimilarity(text, cands[slots[k]].chunk, s)
		}
	}

	for i := range cands {
		cands[i].relevance = SemanticWeight*clamp01(sims[i]) + LexicalWeight*cands[i].relevance
	}
	span.SetAttributes(attribute.Int("reranked", len(cands)), attribute.Int("cache_misses", len(missing)))
	return cands, nil
}

func similarityKey(text string, c *types.CodeChunk) [32]byte {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write(c.ContentHash[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func (o *Orchestrator) cachedSimilarity(text string, c *types.CodeChunk) (float64, bool) {
	if o.simCache == nil {
		return 0, false
	}
	return o.simCache.Get(similarityKey(text, c))
}

func (o *Orchestrator) storeSimilarity(text string, c *types.CodeChunk, s float64) {
	if o.simCache != nil {
		o.simCache.Add(similarityKey(text, c), s)
	}
}

// expand adds the anchor's graph neighborhood. An anchor that does not
// resolve leaves cands unchanged.
func (o *Orchestrator) expand(ctx context.Context, chunks []types.CodeChunk, query types.RetrievalQuery, cands []candidate, keep func(*types.CodeChunk) bool, limit int) ([]candidate, bool, error) {
	_, span := tracer.Start(ctx, "retrieval.graph")
	defer span.End()

	g, err := o.source.DependencyGraph()
	if err != nil {
		return nil, false, err
	}
	anchor, ok := resolveAnchor(g, query)
	if !ok {
		o.logger.Debug("anchor not found", "file", query.AnchorFile, "symbol", query.AnchorSymbol)
		return cands, false, nil
	}

	depth := neighborhood(g, anchor, MaxExpansionDepth)
	cands, added := expand(cands, chunks, depth, query.AnchorSymbol, keep, limit)
	span.SetAttributes(attribute.String("anchor", anchor), attribute.Int("neighborhood", len(depth)))
	return cands, added, nil
}
