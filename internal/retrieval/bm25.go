package retrieval

import (
	"math"
	"strings"

	"github.com/dshills/codectx/internal/tokenize"
	"github.com/dshills/codectx/pkg/types"
)

// BM25 parameters
const (
	BM25K1 = 1.2
	BM25B  = 0.75
)

type posting struct {
	doc int
	tf  int
}

// lexicalIndex is an in-memory BM25 index over one chunk slice.
type lexicalIndex struct {
	postings map[string][]posting
	docLen   []int
	avgLen   float64
}

// chunkTerms returns the searchable terms of a chunk: its content, the
// symbols it declares and its file path.
func chunkTerms(c *types.CodeChunk) []string {
	terms := tokenize.Words(c.Content)
	if len(c.Symbols) > 0 {
		terms = append(terms, tokenize.Words(strings.Join(c.Symbols, " "))...)
	}
	return append(terms, tokenize.Path(c.FilePath)...)
}

func newLexicalIndex(chunks []types.CodeChunk) *lexicalIndex {
	idx := &lexicalIndex{
		postings: make(map[string][]posting),
		docLen:   make([]int, len(chunks)),
	}

	total := 0
	for i := range chunks {
		terms := chunkTerms(&chunks[i])
		idx.docLen[i] = len(terms)
		total += len(terms)

		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t, n := range tf {
			idx.postings[t] = append(idx.postings[t], posting{doc: i, tf: n})
		}
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(total) / float64(len(chunks))
	}
	return idx
}

// score returns the BM25 score of every document matching at least one
// query term. keep filters documents before scoring.
func (idx *lexicalIndex) score(query []string, keep func(doc int) bool) map[int]float64 {
	scores := make(map[int]float64)
	if idx.avgLen == 0 {
		return scores
	}

	n := float64(len(idx.docLen))
	seen := make(map[string]struct{}, len(query))
	for _, term := range query {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postings := idx.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)

		for _, p := range postings {
			if keep != nil && !keep(p.doc) {
				continue
			}
			tf := float64(p.tf)
			dl := float64(idx.docLen[p.doc])
			scores[p.doc] += idf * (tf * (BM25K1 + 1)) / (tf + BM25K1*(1-BM25B+BM25B*dl/idx.avgLen))
		}
	}
	return scores
}
