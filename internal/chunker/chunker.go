package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/codectx/internal/parser"
	"github.com/dshills/codectx/pkg/types"
)

// MaxTokensPerChunk is the size above which a chunk is split into line blocks.
const MaxTokensPerChunk = 1000

// Chunker splits indexed files into retrieval chunks along symbol spans.
type Chunker struct {
	maxTokens int
}

// New creates a Chunker. A non-positive maxTokens uses MaxTokensPerChunk.
func New(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = MaxTokensPerChunk
	}
	return &Chunker{maxTokens: maxTokens}
}

type span struct {
	start, end int // 1-based, inclusive
	kind       types.ChunkKind
}

// ChunkFile creates chunks for one file. Top-level symbols become function,
// class or type chunks; source between them (imports, variables, statements)
// becomes module chunks. A file without symbols is a single module chunk.
func (c *Chunker) ChunkFile(file *types.IndexedFile, content []byte) []types.CodeChunk {
	if len(content) == 0 || strings.TrimSpace(string(content)) == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")

	spans := c.symbolSpans(file.Symbols, lines)
	spans = withGaps(spans, lines)

	isConfig := parser.IsConfigFile(file.RelPath)
	var chunks []types.CodeChunk
	for _, sp := range spans {
		for _, part := range c.split(sp, lines) {
			kind := part.kind
			if file.IsTest {
				kind = types.ChunkTest
			}
			chunks = append(chunks, newChunk(file, lines, part.start, part.end, kind, isConfig))
		}
	}
	return chunks
}

// symbolSpans returns non-overlapping spans for the outermost symbols.
// Members inside a class span are part of that chunk.
func (c *Chunker) symbolSpans(symbols []types.Symbol, lines []string) []span {
	sorted := make([]types.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if s.Kind == types.KindVariable || s.Start.Line <= 0 || s.Start.Line > len(lines) {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start.Line != sorted[j].Start.Line {
			return sorted[i].Start.Line < sorted[j].Start.Line
		}
		return sorted[i].End.Line > sorted[j].End.Line
	})

	var spans []span
	last := 0
	for _, s := range sorted {
		if s.Start.Line <= last {
			continue
		}
		start := docStart(lines, s.Start.Line, last)
		end := min(max(s.End.Line, s.Start.Line), len(lines))
		spans = append(spans, span{start: start, end: end, kind: chunkKind(s.Kind)})
		last = end
	}
	return spans
}

func chunkKind(kind types.SymbolKind) types.ChunkKind {
	switch kind.Base() {
	case types.KindFunction:
		return types.ChunkFunction
	case types.KindClass, types.KindInterface, types.KindEnum, types.KindNamespace:
		return types.ChunkClass
	case types.KindType:
		return types.ChunkType
	default:
		return types.ChunkBlock
	}
}

// docStart extends a symbol start upward over directly attached comments and
// decorators, never past floor.
func docStart(lines []string, start, floor int) int {
	for start-1 > floor {
		t := strings.TrimSpace(lines[start-2])
		if !isCommentOrDecorator(t) {
			break
		}
		start--
	}
	return start
}

func isCommentOrDecorator(t string) bool {
	for _, p := range []string{"//", "/*", "*", "#", "@"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// withGaps inserts module spans for non-blank source not covered by a symbol.
func withGaps(spans []span, lines []string) []span {
	var out []span
	next := 1
	addGap := func(from, to int) {
		for from <= to && strings.TrimSpace(lines[from-1]) == "" {
			from++
		}
		for to >= from && strings.TrimSpace(lines[to-1]) == "" {
			to--
		}
		if from <= to {
			out = append(out, span{start: from, end: to, kind: types.ChunkModule})
		}
	}
	for _, sp := range spans {
		if sp.start > next {
			addGap(next, sp.start-1)
		}
		out = append(out, sp)
		next = sp.end + 1
	}
	if next <= len(lines) {
		addGap(next, len(lines))
	}
	return out
}

// split breaks an oversized span into consecutive line blocks.
func (c *Chunker) split(sp span, lines []string) []span {
	limit := c.maxTokens * types.CharsPerToken
	size := 0
	for i := sp.start; i <= sp.end; i++ {
		size += len(lines[i-1]) + 1
	}
	if size/types.CharsPerToken <= c.maxTokens {
		return []span{sp}
	}

	var parts []span
	from, acc := sp.start, 0
	for i := sp.start; i <= sp.end; i++ {
		n := len(lines[i-1]) + 1
		if acc > 0 && acc+n > limit {
			parts = append(parts, span{start: from, end: i - 1, kind: types.ChunkBlock})
			from, acc = i, 0
		}
		acc += n
	}
	parts = append(parts, span{start: from, end: sp.end, kind: types.ChunkBlock})
	return parts
}

func newChunk(file *types.IndexedFile, lines []string, start, end int, kind types.ChunkKind, isConfig bool) types.CodeChunk {
	last := strings.TrimRight(lines[end-1], " \t\r")
	ch := types.CodeChunk{
		ID:           fmt.Sprintf("%s:%d-%d", file.RelPath, start, end),
		FilePath:     file.RelPath,
		StartLine:    start,
		StartCol:     1,
		EndLine:      end,
		EndCol:       max(len(last), 1),
		Content:      strings.Join(lines[start-1:end], "\n"),
		Language:     file.Language,
		Kind:         kind,
		Dependencies: file.Dependencies,
		IsTest:       file.IsTest,
		IsConfig:     isConfig,
	}
	for _, s := range file.Symbols {
		if s.Start.Line >= start && s.Start.Line <= end {
			ch.Symbols = append(ch.Symbols, s.Name)
		}
	}
	ch.ComputeTokenCount()
	ch.ComputeContentHash()
	return ch
}
