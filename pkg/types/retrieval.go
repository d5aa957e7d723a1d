package types

import "time"

// Retrieval defaults
const (
	DefaultTokenBudget     = 4000
	DefaultMaxResults      = 20
	DefaultBM25PreFilter   = 100
	DefaultEmbeddingRerank = 30
	DefaultGraphExpansion  = 30
)

// RetrievalQuery describes what the caller is looking for.
type RetrievalQuery struct {
	Intent       string `json:"intent"`
	Context      string `json:"context,omitempty"`
	AnchorFile   string `json:"anchor_file,omitempty"`
	AnchorSymbol string `json:"anchor_symbol,omitempty"`
	MaxResults   int    `json:"max_results,omitempty"`
	TokenBudget  int    `json:"token_budget,omitempty"`

	// Inclusion flags; nil defers to RetrievalOptions.
	IncludeTests  *bool `json:"include_tests,omitempty"`
	IncludeConfig *bool `json:"include_config,omitempty"`
}

// Validate checks the query fields
func (q *RetrievalQuery) Validate() error {
	if q.Intent == "" {
		return ErrEmptyQuery
	}
	if q.TokenBudget < 0 {
		return NewConfigError("token_budget", "must be >= 0")
	}
	if q.MaxResults < 0 {
		return NewConfigError("max_results", "must be >= 0")
	}
	return nil
}

// RetrievalOptions tunes the retrieval pipeline stages.
type RetrievalOptions struct {
	MaxResults       int  `json:"max_results" yaml:"max_results"`
	BM25PreFilter    int  `json:"bm25_prefilter" yaml:"bm25_prefilter"`
	EmbeddingRerank  int  `json:"embedding_rerank" yaml:"embedding_rerank"`
	GraphExpansion   int  `json:"graph_expansion" yaml:"graph_expansion"`
	IncludeNeighbors bool `json:"include_neighbors" yaml:"include_neighbors"`
	IncludeTests     bool `json:"include_tests" yaml:"include_tests"`
	IncludeConfig    bool `json:"include_config" yaml:"include_config"`
}

// DefaultRetrievalOptions returns the documented defaults.
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		MaxResults:       DefaultMaxResults,
		BM25PreFilter:    DefaultBM25PreFilter,
		EmbeddingRerank:  DefaultEmbeddingRerank,
		GraphExpansion:   DefaultGraphExpansion,
		IncludeNeighbors: true,
	}
}

// Citation points at the source of one selected chunk.
type Citation struct {
	FilePath  string  `json:"file_path"`
	Line      int     `json:"line"`
	Symbol    string  `json:"symbol,omitempty"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// Validate checks the citation fields
func (c *Citation) Validate() error {
	if c.Relevance < 0 || c.Relevance > 1 {
		return ErrInvalidRelevanceScore
	}
	return nil
}

// RetrievalResult is the ranked, cited output of a retrieval call.
// Chunks and Citations are parallel slices.
type RetrievalResult struct {
	Chunks         []CodeChunk   `json:"chunks"`
	Citations      []Citation    `json:"citations"`
	Method         string        `json:"method"`
	Confidence     float64       `json:"confidence"`
	TotalTokens    int           `json:"total_tokens"`
	ProcessingTime time.Duration `json:"processing_time"`
}
