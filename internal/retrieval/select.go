package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/codectx/pkg/types"
)

// Selection constants
const (
	// OverflowFraction is the share of the token budget a single chunk may
	// exceed it by when it is the first chunk that does not fit.
	OverflowFraction = 0.1
	MaxSnippetLength = 160
)

// candidate is a chunk moving through the pipeline.
type candidate struct {
	chunk     *types.CodeChunk
	lexical   float64 // raw BM25
	relevance float64 // in [0,1]
	graph     bool    // added by graph expansion
}

func chunkCost(c *types.CodeChunk) int {
	if c.TokenCount > 0 {
		return c.TokenCount
	}
	return types.EstimateTokens(c.Content)
}

// selectWithinBudget sorts candidates by relevance and accepts them greedily
// until the budget is spent. The first chunk that does not fit is still
// accepted when it costs at most OverflowFraction of the budget; selection
// stops there either way.
func selectWithinBudget(cands []candidate, budget, maxResults int) ([]candidate, int) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].relevance > cands[j].relevance
	})

	var (
		out   []candidate
		total int
	)
	for _, c := range cands {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		cost := chunkCost(c.chunk)
		if total+cost <= budget {
			out = append(out, c)
			total += cost
			continue
		}
		if float64(cost) <= OverflowFraction*float64(budget) {
			out = append(out, c)
			total += cost
		}
		break
	}
	return out, total
}

var declarationRe = regexp.MustCompile(
	`^\s*(?:export\s+)?(?:default\s+)?(?:pub(?:\([^)]*\))?\s+)?(?:public\s+|private\s+|protected\s+|static\s+|abstract\s+|async\s+)*` +
		`(?:func|function|class|def|type|interface|struct|enum|trait|fn|impl|module|namespace|record)\s+` +
		`(?:\([^)]*\)\s*)?([A-Za-z_$][\w$]*)`)

// declaredSymbol returns the first name introduced by a declaration keyword
// in content, falling back to the chunk's first recorded symbol.
func declaredSymbol(c *types.CodeChunk) string {
	for _, line := range strings.Split(c.Content, "\n") {
		if m := declarationRe.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	if len(c.Symbols) > 0 {
		return c.Symbols[0]
	}
	return ""
}

// snippet returns the first non-blank line of content, trimmed and cut to
// MaxSnippetLength bytes.
func snippet(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= MaxSnippetLength {
			return line
		}
		cut := MaxSnippetLength - len("...")
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		return line[:cut] + "..."
	}
	return ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

// cite builds one citation per selected chunk. Chunks without a positive
// relevance get a rank-based score instead.
func cite(selected []candidate) []types.Citation {
	out := make([]types.Citation, len(selected))
	for i, c := range selected {
		rel := clamp01(c.relevance)
		if rel == 0 {
			rel = clamp01(1.0 - float64(i)*0.1)
		}
		out[i] = types.Citation{
			FilePath:  c.chunk.FilePath,
			Line:      c.chunk.StartLine,
			Symbol:    declaredSymbol(c.chunk),
			Snippet:   snippet(c.chunk.Content),
			Relevance: rel,
		}
	}
	return out
}

// confidence blends the mean citation relevance with how many distinct files
// the result draws on.
func confidence(citations []types.Citation) float64 {
	if len(citations) == 0 {
		return 0
	}
	var sum float64
	files := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		sum += c.Relevance
		files[c.FilePath] = struct{}{}
	}
	avg := sum / float64(len(citations))
	diversity := min(float64(len(files))/float64(len(citations)), 1)
	return clamp01(0.5*avg + 0.5*diversity)
}
