package graph

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

// Trace limits.
const (
	DefaultMaxDepth = 5
	MaxChains       = 1000

	// MaxCycleSteps bounds the DFS steps of one cycle search.
	MaxCycleSteps = 100000
)

// Cycle severity thresholds.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"

	// HighSeverityLength is the cycle length above which a cycle is high severity.
	HighSeverityLength = 3
)

// Blast radius levels by total affected files.
const (
	ImpactLow    = "low"
	ImpactMedium = "medium"
	ImpactHigh   = "high"

	ImpactMediumThreshold = 3
	ImpactHighThreshold   = 10
)

// Hop is one traversed edge. Symbols are the names imported across it.
type Hop struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Symbols []string `json:"symbols,omitempty"`
}

// Chain is a path of hops starting at the traced file.
type Chain []Hop

// Files returns the files along the chain, excluding the start.
func (c Chain) Files() []string {
	out := make([]string, len(c))
	for i, h := range c {
		out[i] = h.To
	}
	return out
}

// Cycle is a closed import path. Files starts at the node where the cycle
// was detected; the last file imports the first.
type Cycle struct {
	Files    []string `json:"files"`
	Severity string   `json:"severity"`
}

// Len returns the number of files in the cycle.
func (c Cycle) Len() int { return len(c.Files) }

// UnusedExport is an exported symbol that nothing appears to use.
type UnusedExport struct {
	File   string           `json:"file"`
	Symbol string           `json:"symbol"`
	Kind   types.SymbolKind `json:"kind"`
	Line   int              `json:"line"`
	Reason string           `json:"reason"` // "unreachable" or "unreferenced"
}

// Impact is the blast radius of changing a file.
type Impact struct {
	File       string   `json:"file"`
	Direct     []string `json:"direct"`
	Transitive []string `json:"transitive"`
	Total      int      `json:"total"`
	Level      string   `json:"level"`
}

// SourceReader returns the content of an indexed file.
type SourceReader func(f *types.IndexedFile) ([]byte, error)

// ForwardTrace follows imports from file up to maxDepth hops. A file never
// repeats within one chain but may appear on several chains.
func (g *Graph) ForwardTrace(file string, maxDepth int) ([]Chain, error) {
	return g.trace(file, maxDepth, func(n string) []string { return sortedKeys(g.forward[n]) },
		func(from, to string) []string { return g.forward[from][to] })
}

// BackwardTrace follows importers of file up to maxDepth hops.
func (g *Graph) BackwardTrace(file string, maxDepth int) ([]Chain, error) {
	return g.trace(file, maxDepth, func(n string) []string { return sortedKeys(g.reverse[n]) },
		func(from, to string) []string { return g.forward[to][from] })
}

func (g *Graph) trace(file string, maxDepth int, next func(string) []string, symbols func(from, to string) []string) ([]Chain, error) {
	start, ok := g.Key(file)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotIndexed, file)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var (
		chains []Chain
		hops   []Hop
	)
	onChain := map[string]bool{start: true}

	var walk func(node string)
	walk = func(node string) {
		if len(chains) >= MaxChains {
			return
		}
		extended := false
		if len(hops) < maxDepth {
			for _, n := range next(node) {
				if onChain[n] {
					continue
				}
				extended = true
				onChain[n] = true
				hops = append(hops, Hop{From: node, To: n, Symbols: symbols(node, n)})
				walk(n)
				hops = hops[:len(hops)-1]
				onChain[n] = false
			}
		}
		if !extended && len(hops) > 0 {
			chains = append(chains, append(Chain(nil), hops...))
		}
	}
	walk(start)
	return chains, nil
}

// TracedFiles returns the distinct files reached by chains, sorted.
func TracedFiles(chains []Chain) []string {
	seen := make(map[string]struct{})
	for _, c := range chains {
		for _, f := range c.Files() {
			seen[f] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// DetectCycles reports the import cycles reachable from file, including
// every cycle that passes through file. Each cycle is reported once
// regardless of rotation. At most MaxChains cycles are returned.
func (g *Graph) DetectCycles(file string) ([]Cycle, error) {
	start, ok := g.Key(file)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotIndexed, file)
	}
	seen := make(map[string]struct{})
	return g.cyclesFrom(start, seen, nil), nil
}

// DetectAllCycles reports every cycle in the graph.
func (g *Graph) DetectAllCycles() []Cycle {
	seen := make(map[string]struct{})
	var out []Cycle
	for _, n := range g.Nodes() {
		out = g.cyclesFrom(n, seen, out)
	}
	return out
}

type frame struct {
	node string
	next []string
	pos  int
}

// cyclesFrom runs an iterative DFS from start. A target already on the stack
// closes a cycle made of the stack slice from that target onward. Nodes are
// revisited on every path that reaches them, so a cycle is found however the
// search arrives at it.
func (g *Graph) cyclesFrom(start string, seen map[string]struct{}, out []Cycle) []Cycle {
	stack := []frame{{node: start, next: sortedKeys(g.forward[start])}}
	onStack := map[string]int{start: 0}

	for steps := 0; len(stack) > 0; steps++ {
		if steps >= MaxCycleSteps || len(out) >= MaxChains {
			break
		}
		top := &stack[len(stack)-1]
		if top.pos >= len(top.next) {
			delete(onStack, top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		n := top.next[top.pos]
		top.pos++

		if idx, ok := onStack[n]; ok {
			files := make([]string, 0, len(stack)-idx)
			for _, f := range stack[idx:] {
				files = append(files, f.node)
			}
			key := cycleKey(files)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				out = append(out, Cycle{Files: files, Severity: cycleSeverity(len(files))})
			}
			continue
		}
		onStack[n] = len(stack)
		stack = append(stack, frame{node: n, next: sortedKeys(g.forward[n])})
	}
	return out
}

func cycleSeverity(length int) string {
	if length > HighSeverityLength {
		return SeverityHigh
	}
	return SeverityMedium
}

// cycleKey is the rotation with the smallest file first.
func cycleKey(files []string) string {
	first := 0
	for i, f := range files {
		if f < files[first] {
			first = i
		}
	}
	rotated := append(append([]string(nil), files[first:]...), files[:first]...)
	return strings.Join(rotated, "\x00")
}

// Reachable returns the files transitively imported from the entry points,
// entry points included. Unknown entry points are ignored.
func (g *Graph) Reachable(entryPoints []string) map[string]bool {
	reached := make(map[string]bool)
	var queue []string
	for _, e := range entryPoints {
		if key, ok := g.Key(e); ok && !reached[key] {
			reached[key] = true
			queue = append(queue, key)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for to := range g.forward[n] {
			if !reached[to] {
				reached[to] = true
				queue = append(queue, to)
			}
		}
	}
	return reached
}

// Unreachable returns the files not reachable from any entry point, sorted.
func (g *Graph) Unreachable(entryPoints []string) []string {
	reached := g.Reachable(entryPoints)
	var out []string
	for _, n := range g.Nodes() {
		if !reached[n] {
			out = append(out, n)
		}
	}
	return out
}

var identRe = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

// UnusedExports flags top-level exported symbols that look dead: every export
// of an unreachable file, and exports of reachable files whose name never
// appears as an identifier in another reachable file. Entry point files are
// treated as public API and skipped. A nil read loads files from disk; files
// that cannot be read contribute no identifiers.
func (g *Graph) UnusedExports(entryPoints []string, read SourceReader) []UnusedExport {
	if read == nil {
		read = func(f *types.IndexedFile) ([]byte, error) { return os.ReadFile(f.Path) }
	}
	reached := g.Reachable(entryPoints)
	entries := make(map[string]bool)
	for _, e := range entryPoints {
		if key, ok := g.Key(e); ok {
			entries[key] = true
		}
	}

	// identifier -> reachable files mentioning it
	mentions := make(map[string]map[string]struct{})
	for n := range reached {
		src, err := read(g.nodes[n])
		if err != nil {
			continue
		}
		for _, id := range identRe.FindAllString(string(src), -1) {
			if mentions[id] == nil {
				mentions[id] = make(map[string]struct{})
			}
			mentions[id][n] = struct{}{}
		}
	}

	var out []UnusedExport
	for _, n := range g.Nodes() {
		if entries[n] {
			continue
		}
		for _, s := range g.nodes[n].Symbols {
			if !s.Exported || s.Parent != "" {
				continue
			}
			reason := ""
			switch {
			case !reached[n]:
				reason = "unreachable"
			case !mentionedElsewhere(mentions[s.Name], n):
				reason = "unreferenced"
			default:
				continue
			}
			out = append(out, UnusedExport{File: n, Symbol: s.Name, Kind: s.Kind, Line: s.Start.Line, Reason: reason})
		}
	}
	return out
}

func mentionedElsewhere(files map[string]struct{}, self string) bool {
	for f := range files {
		if f != self {
			return true
		}
	}
	return false
}

// BlastRadius returns the files that directly or transitively import file.
func (g *Graph) BlastRadius(file string) (*Impact, error) {
	start, ok := g.Key(file)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotIndexed, file)
	}

	direct := sortedKeys(g.reverse[start])
	seen := map[string]bool{start: true}
	for _, d := range direct {
		seen[d] = true
	}

	var transitive []string
	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for from := range g.reverse[n] {
			if !seen[from] {
				seen[from] = true
				transitive = append(transitive, from)
				queue = append(queue, from)
			}
		}
	}
	sort.Strings(transitive)

	total := len(direct) + len(transitive)
	level := ImpactLow
	switch {
	case total >= ImpactHighThreshold:
		level = ImpactHigh
	case total >= ImpactMediumThreshold:
		level = ImpactMedium
	}
	return &Impact{File: start, Direct: direct, Transitive: transitive, Total: total, Level: level}, nil
}
