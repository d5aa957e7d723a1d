package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codectx/pkg/types"
)

func sized(path string, tokens int, relevance float64) candidate {
	c := chunk(path, 1, strings.Repeat("x", tokens*types.CharsPerToken))
	return candidate{chunk: &c, relevance: relevance}
}

func TestSelectWithinBudget(t *testing.T) {
	tests := []struct {
		name       string
		cands      []candidate
		budget     int
		maxResults int
		expect     []string
		tokens     int
	}{
		{
			name:   "second chunk too large",
			cands:  []candidate{sized("a", 80, 0.9), sized("b", 90, 0.8)},
			budget: 100,
			expect: []string{"a"},
			tokens: 80,
		},
		{
			name:   "small overflow admitted then stop",
			cands:  []candidate{sized("a", 95, 0.9), sized("b", 10, 0.8), sized("c", 1, 0.7)},
			budget: 100,
			expect: []string{"a", "b"},
			tokens: 105,
		},
		{
			name:   "sorted by relevance",
			cands:  []candidate{sized("low", 10, 0.1), sized("high", 10, 0.9), sized("mid", 10, 0.5)},
			budget: 100,
			expect: []string{"high", "mid", "low"},
			tokens: 30,
		},
		{
			name:   "ties keep input order",
			cands:  []candidate{sized("first", 10, 0.5), sized("second", 10, 0.5)},
			budget: 100,
			expect: []string{"first", "second"},
			tokens: 20,
		},
		{
			name:       "max results",
			cands:      []candidate{sized("a", 1, 0.9), sized("b", 1, 0.8), sized("c", 1, 0.7)},
			budget:     100,
			maxResults: 2,
			expect:     []string{"a", "b"},
			tokens:     2,
		},
		{
			name:   "first chunk over budget",
			cands:  []candidate{sized("big", 500, 0.9), sized("small", 1, 0.1)},
			budget: 100,
			tokens: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tokens := selectWithinBudget(tt.cands, tt.budget, tt.maxResults)
			var paths []string
			for _, c := range got {
				paths = append(paths, c.chunk.FilePath)
			}
			assert.Equal(t, tt.expect, paths)
			assert.Equal(t, tt.tokens, tokens)
			assert.LessOrEqual(t, tokens, tt.budget+tt.budget/10)
		})
	}
}

func TestDeclaredSymbol(t *testing.T) {
	tests := []struct {
		content string
		symbols []string
		expect  string
	}{
		{"// Parse reads input.\nfunc Parse(r io.Reader) error {", nil, "Parse"},
		{"func (s *Server) Start(ctx context.Context) error {", nil, "Start"},
		{"export default class Router {", nil, "Router"},
		{"export async function load() {}", nil, "load"},
		{"    def handle(self, req):", nil, "handle"},
		{"pub fn parse(input: &str) -> Result<()> {", nil, "parse"},
		{"public static class Helpers {", nil, "Helpers"},
		{"type Config struct {", nil, "Config"},
		{"const x = 1", []string{"x"}, "x"},
		{"x := 1", nil, ""},
	}
	for _, tt := range tests {
		c := chunk("f", 1, tt.content, tt.symbols...)
		assert.Equal(t, tt.expect, declaredSymbol(&c), tt.content)
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "func main() {", snippet("\n\n   func main() {\n}\n"))
	assert.Equal(t, "", snippet("  \n\t\n"))

	long := snippet(strings.Repeat("a", 300))
	assert.Len(t, long, MaxSnippetLength)
	assert.True(t, strings.HasSuffix(long, "..."))

	multibyte := snippet(strings.Repeat("é", 200))
	assert.LessOrEqual(t, len(multibyte), MaxSnippetLength)
	assert.True(t, strings.HasSuffix(multibyte, "é..."))
}

func TestCiteAndConfidence(t *testing.T) {
	cands := []candidate{sized("a.go", 1, 0.8), sized("a.go", 1, 0), sized("b.go", 1, 1.7)}
	cands[1].chunk.StartLine = 12

	cites := cite(cands)
	require.Len(t, cites, 3)
	assert.Equal(t, 0.8, cites[0].Relevance)
	assert.InDelta(t, 0.9, cites[1].Relevance, 1e-9, "rank fallback for unscored chunks")
	assert.Equal(t, 12, cites[1].Line)
	assert.Equal(t, 1.0, cites[2].Relevance, "clamped")

	// avg relevance 0.9, two files over three chunks
	assert.InDelta(t, 0.5*0.9+0.5*(2.0/3.0), confidence(cites), 1e-9)
	assert.Zero(t, confidence(nil))

	single := []types.Citation{{FilePath: "a.go", Relevance: 1}}
	assert.InDelta(t, 1.0, confidence(single), 1e-9)
}

func TestLexicalIndex(t *testing.T) {
	chunks := []types.CodeChunk{
		chunk("auth/login.go", 1, "func login(user string) { validate(user) }", "login"),
		chunk("auth/token.go", 1, "func issueToken(user string) {}", "issueToken"),
		chunk("db/conn.go", 1, "func openConnection() {}", "openConnection"),
	}
	idx := newLexicalIndex(chunks)

	scores := idx.score([]string{"login", "user"}, nil)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], scores[1])

	// path terms are searchable
	scores = idx.score([]string{"auth"}, nil)
	assert.Len(t, scores, 2)

	scores = idx.score([]string{"login"}, func(doc int) bool { return doc != 0 })
	assert.Empty(t, scores)

	// duplicate query terms count once
	once := idx.score([]string{"token"}, nil)
	twice := idx.score([]string{"token", "token"}, nil)
	assert.Equal(t, once, twice)

	assert.Empty(t, newLexicalIndex(nil).score([]string{"x"}, nil))
}
