package embedder

import (
	"context"
	"fmt"
)

// Similarity scores texts against a query by the cosine similarity of their
// embeddings. It satisfies retrieval.SimilarityProvider.
type Similarity struct {
	embedder Embedder
}

// NewSimilarity creates a Similarity backed by e.
func NewSimilarity(e Embedder) *Similarity {
	return &Similarity{embedder: e}
}

// Similarity returns one score in [-1, 1] per text. Empty texts score 0.
func (s *Similarity) Similarity(ctx context.Context, query string, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	if query == "" || len(texts) == 0 {
		return scores, nil
	}

	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var (
		batch []string
		slots []int
	)
	for i, t := range texts {
		if t != "" {
			batch = append(batch, t)
			slots = append(slots, i)
		}
	}
	if len(batch) == 0 {
		return scores, nil
	}

	embs, err := s.embedder.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	for k, emb := range embs {
		scores[slots[k]] = Cosine(q.Vector, emb.Vector)
	}
	return scores, nil
}

// Close closes the underlying embedder.
func (s *Similarity) Close() error {
	return s.embedder.Close()
}
