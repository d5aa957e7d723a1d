// Package graph builds the file-level dependency graph of an indexed project
// and answers read-only questions about it.
package graph

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dshills/codectx/internal/parser"
	"github.com/dshills/codectx/pkg/types"
)

// Resolution order for relative specifiers after the exact path. The
// importing file's own extension is always tried first.
var (
	DefaultExtensions = []string{
		".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts",
		".py", ".pyi", ".rb", ".rs", ".go", ".java", ".cs",
	}
	IndexFiles = []string{
		"index.ts", "index.tsx", "index.js", "index.jsx", "index.mjs", "index.cjs",
		"__init__.py", "mod.rs",
	}
)

// Graph is a directed graph of local file imports keyed by relative path.
// A built Graph is never mutated; all methods are safe for concurrent use.
type Graph struct {
	nodes    map[string]*types.IndexedFile
	byAbs    map[string]string
	forward  map[string]map[string][]string // from -> to -> imported names
	reverse  map[string]map[string]struct{} // to -> from
	external map[string]int
	builtAt  time.Time
}

// Edge is one resolved import.
type Edge struct {
	From    string
	To      string
	Symbols []string
}

// Stats summarizes a graph.
type Stats struct {
	Nodes                int            `json:"nodes"`
	Edges                int            `json:"edges"`
	ExternalDependencies int            `json:"external_dependencies"`
	External             map[string]int `json:"external,omitempty"` // specifier -> importing file count
	BuiltAt              time.Time      `json:"built_at"`
}

func newGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*types.IndexedFile),
		byAbs:    make(map[string]string),
		forward:  make(map[string]map[string][]string),
		reverse:  make(map[string]map[string]struct{}),
		external: make(map[string]int),
	}
}

// Build creates the graph for files. Relative specifiers become edges when
// they resolve to another indexed file; everything else is counted as an
// external dependency.
func Build(files []*types.IndexedFile) *Graph {
	g := newGraph()
	for _, f := range files {
		g.nodes[f.RelPath] = f
		if f.Path != "" {
			g.byAbs[f.Path] = f.RelPath
		}
	}

	for _, f := range files {
		for _, spec := range f.Dependencies {
			if !parser.IsRelative(spec) {
				g.external[spec]++
				continue
			}
			target, ok := g.resolve(f.RelPath, spec)
			if !ok || target == f.RelPath {
				continue
			}
			g.addEdge(f.RelPath, target, f.Imports[spec])
		}
	}

	g.builtAt = time.Now()
	return g
}

// addEdge requires both ends to be nodes.
func (g *Graph) addEdge(from, to string, symbols []string) {
	if _, ok := g.nodes[from]; !ok {
		return
	}
	if _, ok := g.nodes[to]; !ok {
		return
	}
	if g.forward[from] == nil {
		g.forward[from] = make(map[string][]string)
	}
	existing := g.forward[from][to]
	for _, s := range symbols {
		if !contains(existing, s) {
			existing = append(existing, s)
		}
	}
	if existing == nil {
		existing = []string{}
	}
	g.forward[from][to] = existing

	if g.reverse[to] == nil {
		g.reverse[to] = make(map[string]struct{})
	}
	g.reverse[to][from] = struct{}{}
}

// resolve maps a relative specifier written in importer to an indexed file.
func (g *Graph) resolve(importer, spec string) (string, bool) {
	base := specBase(path.Dir(importer), spec)
	if base == "" {
		return "", false
	}

	if _, ok := g.nodes[base]; ok {
		return base, true
	}

	// ESM sources often import "./x.js" for a file compiled from x.ts.
	if ext := path.Ext(base); ext == ".js" || ext == ".mjs" || ext == ".cjs" {
		stem := strings.TrimSuffix(base, ext)
		for _, alt := range []string{".ts", ".tsx", ".mts", ".cts"} {
			if _, ok := g.nodes[stem+alt]; ok {
				return stem + alt, true
			}
		}
	}

	for _, ext := range extensionOrder(path.Ext(importer)) {
		if _, ok := g.nodes[base+ext]; ok {
			return base + ext, true
		}
	}
	for _, index := range IndexFiles {
		candidate := path.Join(base, index)
		if _, ok := g.nodes[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// specBase joins spec onto dir. Path-style specifiers ("./x", "../x") join
// directly; Python relative modules (".x", "..pkg.mod") climb one package per
// extra leading dot.
func specBase(dir, spec string) string {
	if spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		p := path.Join(dir, spec)
		if p == ".." || strings.HasPrefix(p, "../") {
			return ""
		}
		return p
	}

	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	base := dir
	for i := 1; i < dots; i++ {
		if base == "." {
			return ""
		}
		base = path.Dir(base)
	}
	if rest := strings.TrimLeft(spec, "."); rest != "" {
		base = path.Join(base, strings.ReplaceAll(rest, ".", "/"))
	}
	return base
}

func extensionOrder(own string) []string {
	out := make([]string, 0, len(DefaultExtensions)+1)
	if own != "" {
		out = append(out, own)
	}
	for _, ext := range DefaultExtensions {
		if ext != own {
			out = append(out, ext)
		}
	}
	return out
}

// Key returns the node key for a relative or absolute path.
func (g *Graph) Key(file string) (string, bool) {
	if _, ok := g.nodes[file]; ok {
		return file, true
	}
	if rel, ok := g.byAbs[file]; ok {
		return rel, true
	}
	clean := path.Clean(strings.ReplaceAll(file, "\\", "/"))
	if _, ok := g.nodes[clean]; ok {
		return clean, true
	}
	return "", false
}

// Node returns the indexed file for a node key.
func (g *Graph) Node(file string) (*types.IndexedFile, bool) {
	key, ok := g.Key(file)
	if !ok {
		return nil, false
	}
	return g.nodes[key], true
}

// Nodes returns every node key, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge sorted by source then target.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, targets := range g.forward {
		for to, syms := range targets {
			out = append(out, Edge{From: from, To: to, Symbols: syms})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// HasEdge reports whether from imports to.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.forward[from][to]
	return ok
}

// EdgeSymbols returns the names from imports from to.
func (g *Graph) EdgeSymbols(from, to string) []string {
	return g.forward[from][to]
}

// Imports returns the files imported by file, sorted.
func (g *Graph) Imports(file string) []string {
	key, ok := g.Key(file)
	if !ok {
		return nil
	}
	return sortedKeys(g.forward[key])
}

// Importers returns the files importing file, sorted.
func (g *Graph) Importers(file string) []string {
	key, ok := g.Key(file)
	if !ok {
		return nil
	}
	return sortedKeys(g.reverse[key])
}

// Stats returns graph counts.
func (g *Graph) Stats() Stats {
	edges := 0
	for _, targets := range g.forward {
		edges += len(targets)
	}
	external := make(map[string]int, len(g.external))
	for k, v := range g.external {
		external[k] = v
	}
	return Stats{
		Nodes:                len(g.nodes),
		Edges:                edges,
		ExternalDependencies: len(g.external),
		External:             external,
		BuiltAt:              g.builtAt,
	}
}

// BuiltAt returns when the graph was built.
func (g *Graph) BuiltAt() time.Time {
	return g.builtAt
}

// RemoveNodes returns a copy of g without the given files and every edge
// touching them. The receiver is unchanged.
func (g *Graph) RemoveNodes(paths []string) *Graph {
	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if key, ok := g.Key(p); ok {
			drop[key] = struct{}{}
		}
	}

	out := newGraph()
	out.builtAt = g.builtAt
	for k, f := range g.nodes {
		if _, gone := drop[k]; gone {
			continue
		}
		out.nodes[k] = f
		if f.Path != "" {
			out.byAbs[f.Path] = k
		}
	}
	for from, targets := range g.forward {
		for to, syms := range targets {
			out.addEdge(from, to, syms)
		}
	}
	for _, f := range out.nodes {
		for _, spec := range f.Dependencies {
			if !parser.IsRelative(spec) {
				out.external[spec]++
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
