package retrieval

import (
	"sort"

	"github.com/dshills/codectx/internal/graph"
	"github.com/dshills/codectx/pkg/types"
)

// MaxExpansionDepth bounds how far graph expansion walks from the anchor.
const MaxExpansionDepth = 2

// resolveAnchor maps the query anchor to a graph node. An anchor file wins
// over an anchor symbol; a symbol resolves to the first file, in path order,
// that declares it.
func resolveAnchor(g *graph.Graph, q types.RetrievalQuery) (string, bool) {
	if q.AnchorFile != "" {
		if key, ok := g.Key(q.AnchorFile); ok {
			return key, true
		}
	}
	if q.AnchorSymbol != "" {
		for _, key := range g.Nodes() {
			f, _ := g.Node(key)
			if _, ok := f.FindSymbol(q.AnchorSymbol); ok {
				return key, true
			}
		}
	}
	return "", false
}

// neighborhood returns every file within maxDepth hops of anchor in either
// direction, with its distance.
func neighborhood(g *graph.Graph, anchor string, maxDepth int) map[string]int {
	depth := map[string]int{anchor: 0}
	frontier := []string{anchor}
	for d := 1; d <= maxDepth && len(frontier) > 0; d++ {
		var next []string
		for _, f := range frontier {
			for _, n := range append(g.Imports(f), g.Importers(f)...) {
				if _, seen := depth[n]; !seen {
					depth[n] = d
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
	return depth
}

// graphScore is the relevance given to a chunk found at depth hops from the
// anchor. Chunks in the anchor file score 1 when they declare the anchor
// symbol and 0.5 otherwise.
func graphScore(c *types.CodeChunk, depth int, symbol string) float64 {
	if depth == 0 {
		if symbol != "" && contains(c.Symbols, symbol) {
			return 1
		}
		return 0.5
	}
	return 0.5 / float64(depth)
}

// expand adds the chunks of the anchor's neighborhood to cands. Chunks
// already present, by content hash, keep the higher of their two scores.
// At most limit new chunks are added. It reports whether anything was added.
func expand(cands []candidate, chunks []types.CodeChunk, depth map[string]int, symbol string, keep func(*types.CodeChunk) bool, limit int) ([]candidate, bool) {
	present := make(map[[32]byte]int, len(cands))
	for i, c := range cands {
		present[c.chunk.ContentHash] = i
	}

	var extra []candidate
	for i := range chunks {
		c := &chunks[i]
		d, ok := depth[c.FilePath]
		if !ok || !keep(c) {
			continue
		}
		score := graphScore(c, d, symbol)
		if at, dup := present[c.ContentHash]; dup {
			if at >= 0 && score > cands[at].relevance {
				cands[at].relevance = score
			}
			continue
		}
		present[c.ContentHash] = -1
		extra = append(extra, candidate{chunk: c, relevance: score, graph: true})
	}

	sort.SliceStable(extra, func(i, j int) bool {
		return extra[i].relevance > extra[j].relevance
	})
	if len(extra) > limit {
		extra = extra[:max(limit, 0)]
	}
	return append(cands, extra...), len(extra) > 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
