// Package retrieval answers natural-language queries over an indexed project
// with a ranked, cited and token-budgeted set of code chunks.
//
// # Pipeline
//
// Retrieve runs four stages, each consuming the previous stage's candidates:
//
//  1. Lexical prefilter. BM25 (k1=1.2, b=0.75) over chunk content, declared
//     symbols and file path, with identifiers split on camelCase and
//     snake_case boundaries. The best BM25PreFilter chunks with a positive
//     score survive.
//  2. Semantic rerank. When a SimilarityProvider is configured, the best
//     EmbeddingRerank candidates are rescored as 0.7 times their similarity
//     to the query plus 0.3 times their normalised BM25 score.
//  3. Graph expansion. When the query names an anchor file or symbol and
//     IncludeNeighbors is set, chunks from files up to two imports away in
//     either direction are added with a score of 0.5/depth.
//  4. Budget selection. Candidates are sorted by relevance and accepted
//     until the token budget is spent. The first chunk that does not fit is
//     still taken when it costs no more than a tenth of the budget, and
//     selection stops there.
//
// Each selected chunk gets a Citation. The result's Method names the stages
// that contributed ("bm25", "bm25+semantic", with a "+graph" suffix).
//
// # Usage
//
//	orch := retrieval.New(cache, embedder.NewSimilarity(e), retrieval.WithLogger(logger))
//	res, err := orch.Retrieve(ctx, types.RetrievalQuery{
//	    Intent:      "where is the token budget enforced",
//	    AnchorFile:  "internal/retrieval/select.go",
//	    TokenBudget: 2000,
//	}, types.DefaultRetrievalOptions())
//
// Stage failures are returned as *StageError and recorded on the active
// OpenTelemetry span.
package retrieval
