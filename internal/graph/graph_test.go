package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codectx/internal/indexer"
	"github.com/dshills/codectx/pkg/types"
)

func file(rel string, deps ...string) *types.IndexedFile {
	return &types.IndexedFile{Path: "/proj/" + rel, RelPath: rel, Dependencies: deps}
}

func assertNoDanglingEdges(t *testing.T, g *Graph) {
	t.Helper()
	nodes := make(map[string]bool)
	for _, n := range g.Nodes() {
		nodes[n] = true
	}
	for _, e := range g.Edges() {
		assert.True(t, nodes[e.From], "edge source %s is not a node", e.From)
		assert.True(t, nodes[e.To], "edge target %s is not a node", e.To)
	}
}

func TestBuild_Resolution(t *testing.T) {
	app := file("src/app.ts", "./util", "../lib", "./components", "react", "./missing", "./esm.js", "../../outside")
	app.Imports = map[string][]string{"./util": {"format", "parse"}}
	files := []*types.IndexedFile{
		app,
		file("src/util.ts"),
		file("lib/index.ts"),
		file("src/components/index.tsx"),
		file("src/esm.ts"),
		file("pkg/mod.py", ".helpers", "..core.base", ".", "os"),
		file("pkg/helpers.py"),
		file("pkg/__init__.py"),
		file("core/base.py"),
		file("web/a.js", "./x"),
		file("web/x.js"),
		file("web/x.ts"),
		file("crate/lib.rs", "./parse"),
		file("crate/parse/mod.rs"),
	}

	g := Build(files)
	assertNoDanglingEdges(t, g)

	assert.Equal(t, []string{"lib/index.ts", "src/components/index.tsx", "src/esm.ts", "src/util.ts"}, g.Imports("src/app.ts"))
	assert.Equal(t, []string{"core/base.py", "pkg/__init__.py", "pkg/helpers.py"}, g.Imports("pkg/mod.py"))
	assert.Equal(t, []string{"web/x.js"}, g.Imports("web/a.js"))
	assert.Equal(t, []string{"crate/parse/mod.rs"}, g.Imports("crate/lib.rs"))

	assert.Equal(t, []string{"format", "parse"}, g.EdgeSymbols("src/app.ts", "src/util.ts"))
	assert.Empty(t, g.EdgeSymbols("src/app.ts", "lib/index.ts"))
	assert.True(t, g.HasEdge("src/app.ts", "lib/index.ts"))

	stats := g.Stats()
	assert.Equal(t, len(files), stats.Nodes)
	assert.Equal(t, 9, stats.Edges)
	assert.Equal(t, map[string]int{"react": 1, "os": 1}, stats.External)
	assert.False(t, stats.BuiltAt.IsZero())
}

func TestGraph_Lookup(t *testing.T) {
	g := Build([]*types.IndexedFile{file("a.ts", "./b"), file("b.ts")})

	key, ok := g.Key("/proj/a.ts")
	require.True(t, ok)
	assert.Equal(t, "a.ts", key)

	f, ok := g.Node("./b.ts")
	require.True(t, ok)
	assert.Equal(t, "b.ts", f.RelPath)

	_, ok = g.Node("c.ts")
	assert.False(t, ok)
	assert.Equal(t, []string{"a.ts"}, g.Importers("/proj/b.ts"))
	assert.Nil(t, g.Importers("nope.ts"))
}

func TestTrace(t *testing.T) {
	// a -> b -> d, a -> c -> d
	g := Build([]*types.IndexedFile{
		file("a.ts", "./b", "./c"),
		file("b.ts", "./d"),
		file("c.ts", "./d"),
		file("d.ts"),
	})

	t.Run("forward chains revisit shared nodes", func(t *testing.T) {
		chains, err := g.ForwardTrace("a.ts", 0)
		require.NoError(t, err)
		require.Len(t, chains, 2)
		assert.Equal(t, []string{"b.ts", "d.ts"}, chains[0].Files())
		assert.Equal(t, []string{"c.ts", "d.ts"}, chains[1].Files())
		assert.Equal(t, []string{"b.ts", "c.ts", "d.ts"}, TracedFiles(chains))
	})

	t.Run("depth bound", func(t *testing.T) {
		chains, err := g.ForwardTrace("a.ts", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"b.ts", "c.ts"}, TracedFiles(chains))
		for _, c := range chains {
			assert.Len(t, c, 1)
		}
	})

	t.Run("backward", func(t *testing.T) {
		chains, err := g.BackwardTrace("d.ts", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, TracedFiles(chains))
		assert.Equal(t, Hop{From: "d.ts", To: "b.ts", Symbols: []string{}}, chains[0][0])
	})

	t.Run("leaf has no chains", func(t *testing.T) {
		chains, err := g.ForwardTrace("d.ts", 3)
		require.NoError(t, err)
		assert.Empty(t, chains)
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := g.BackwardTrace("zzz.ts", 2)
		assert.ErrorIs(t, err, types.ErrFileNotIndexed)
	})
}

func TestTrace_StopsOnLoops(t *testing.T) {
	g := Build([]*types.IndexedFile{file("a.ts", "./b"), file("b.ts", "./a")})

	chains, err := g.ForwardTrace("a.ts", 10)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, []string{"b.ts"}, chains[0].Files())
}

func TestDetectCycles(t *testing.T) {
	t.Run("length three is medium", func(t *testing.T) {
		g := Build([]*types.IndexedFile{
			file("a.ts", "./b"),
			file("b.ts", "./c"),
			file("c.ts", "./a"),
		})
		cycles, err := g.DetectCycles("a.ts")
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, cycles[0].Files)
		assert.Equal(t, SeverityMedium, cycles[0].Severity)

		// Every start node finds the same cycle.
		assert.Len(t, g.DetectAllCycles(), 1)

		cycles, err = g.DetectCycles("b.ts")
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.ElementsMatch(t, []string{"a.ts", "b.ts", "c.ts"}, cycles[0].Files)
	})

	t.Run("length four is high", func(t *testing.T) {
		g := Build([]*types.IndexedFile{
			file("a.py", ".b"),
			file("b.py", ".c"),
			file("c.py", ".d"),
			file("d.py", ".a"),
		})
		cycles, err := g.DetectCycles("a.py")
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.Equal(t, 4, cycles[0].Len())
		assert.Equal(t, SeverityHigh, cycles[0].Severity)
	})

	t.Run("acyclic", func(t *testing.T) {
		g := Build([]*types.IndexedFile{file("a.ts", "./b"), file("b.ts")})
		cycles, err := g.DetectCycles("a.ts")
		require.NoError(t, err)
		assert.Empty(t, cycles)
		assert.Empty(t, g.DetectAllCycles())
	})

	t.Run("two cycles sharing a node", func(t *testing.T) {
		g := Build([]*types.IndexedFile{
			file("a.ts", "./b", "./c"),
			file("b.ts", "./a"),
			file("c.ts", "./a"),
		})
		assert.Len(t, g.DetectAllCycles(), 2)
	})

	t.Run("second cycle through start reached by another path", func(t *testing.T) {
		g := Build([]*types.IndexedFile{
			file("a.ts", "./b", "./c"),
			file("b.ts", "./c"),
			file("c.ts", "./a"),
		})
		cycles, err := g.DetectCycles("a.ts")
		require.NoError(t, err)
		require.Len(t, cycles, 2)
		assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, cycles[0].Files)
		assert.Equal(t, []string{"a.ts", "c.ts"}, cycles[1].Files)
		for _, c := range cycles {
			assert.Equal(t, SeverityMedium, c.Severity)
		}

		keys := func(cs []Cycle) []string {
			var out []string
			for _, c := range cs {
				out = append(out, cycleKey(c.Files))
			}
			return out
		}
		assert.ElementsMatch(t, keys(cycles), keys(g.DetectAllCycles()))
	})
}

func TestReachability(t *testing.T) {
	g := Build([]*types.IndexedFile{
		file("main.ts", "./lib"),
		file("lib.ts", "./util"),
		file("util.ts"),
		file("orphan.ts", "./util"),
	})

	reached := g.Reachable([]string{"main.ts"})
	assert.Equal(t, map[string]bool{"main.ts": true, "lib.ts": true, "util.ts": true}, reached)
	assert.Equal(t, []string{"orphan.ts"}, g.Unreachable([]string{"main.ts"}))

	assert.Empty(t, g.Unreachable([]string{"main.ts", "orphan.ts"}))
	assert.Empty(t, g.Reachable([]string{"missing.ts"}))
}

func TestUnusedExports(t *testing.T) {
	sym := func(name string, exported bool) types.Symbol {
		return types.Symbol{Name: name, Kind: types.KindFunction, Exported: exported, Start: types.Position{Line: 1, Column: 1}}
	}
	main := file("main.ts", "./lib")
	lib := file("lib.ts")
	lib.Symbols = []types.Symbol{sym("used", true), sym("unused", true), sym("internal", false)}
	orphan := file("orphan.ts")
	orphan.Symbols = []types.Symbol{sym("lonely", true)}
	main.Symbols = []types.Symbol{sym("start", true)}

	content := map[string]string{
		"main.ts":   "import { used } from './lib';\nexport function start() { used(); }\n",
		"lib.ts":    "export function used() {}\nexport function unused() {}\nfunction internal() {}\n",
		"orphan.ts": "export function lonely() {}\n",
	}
	read := func(f *types.IndexedFile) ([]byte, error) { return []byte(content[f.RelPath]), nil }

	g := Build([]*types.IndexedFile{main, lib, orphan})
	unused := g.UnusedExports([]string{"main.ts"}, read)

	assert.Equal(t, []UnusedExport{
		{File: "lib.ts", Symbol: "unused", Kind: types.KindFunction, Line: 1, Reason: "unreferenced"},
		{File: "orphan.ts", Symbol: "lonely", Kind: types.KindFunction, Line: 1, Reason: "unreachable"},
	}, unused)
}

func TestBlastRadius(t *testing.T) {
	g := Build([]*types.IndexedFile{
		file("core.ts"),
		file("a.ts", "./core"),
		file("b.ts", "./core"),
		file("c.ts", "./a"),
		file("d.ts", "./c"),
	})

	impact, err := g.BlastRadius("core.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts", "b.ts"}, impact.Direct)
	assert.Equal(t, []string{"c.ts", "d.ts"}, impact.Transitive)
	assert.Equal(t, 4, impact.Total)
	assert.Equal(t, ImpactMedium, impact.Level)

	impact, err = g.BlastRadius("d.ts")
	require.NoError(t, err)
	assert.Zero(t, impact.Total)
	assert.Equal(t, ImpactLow, impact.Level)

	_, err = g.BlastRadius("nope.ts")
	assert.ErrorIs(t, err, types.ErrFileNotIndexed)
}

func TestRemoveNodes(t *testing.T) {
	g := Build([]*types.IndexedFile{
		file("a.ts", "./b", "lodash"),
		file("b.ts", "./c", "react"),
		file("c.ts", "./a"),
	})

	pruned := g.RemoveNodes([]string{"b.ts", "not-indexed.ts"})
	assertNoDanglingEdges(t, pruned)

	assert.Equal(t, []string{"a.ts", "c.ts"}, pruned.Nodes())
	assert.Empty(t, pruned.Imports("a.ts"))
	assert.Empty(t, pruned.Importers("c.ts"))
	assert.True(t, pruned.HasEdge("c.ts", "a.ts"))
	assert.Equal(t, map[string]int{"lodash": 1}, pruned.Stats().External)

	// The original graph is untouched.
	assert.Len(t, g.Nodes(), 3)
	assert.True(t, g.HasEdge("a.ts", "b.ts"))
	assert.Len(t, g.DetectAllCycles(), 1)
	assert.Empty(t, pruned.DetectAllCycles())
}

// TestIndexedCycleScenario runs extraction and graph building end to end on a
// three file TypeScript project, then breaks the cycle.
func TestIndexedCycleScenario(t *testing.T) {
	root := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}
	write("a.ts", "import { b } from './b';\nexport const a = () => b();\n")
	write("b.ts", "import { c } from './c';\nexport const b = () => c();\n")
	write("c.ts", "import { a } from './a';\nexport const c = () => a();\n")

	idx := indexer.New()
	res, err := idx.Index(context.Background(), root, nil)
	require.NoError(t, err)

	g := Build(res.Files)
	assertNoDanglingEdges(t, g)
	assert.Equal(t, []string{"b"}, g.EdgeSymbols("a.ts", "b.ts"))

	cycles, err := g.DetectCycles("a.ts")
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a.ts", "b.ts", "c.ts"}, cycles[0].Files)
	assert.Equal(t, SeverityMedium, cycles[0].Severity)

	write("c.ts", "export const c = () => 42;\n")
	res, err = idx.Index(context.Background(), root, nil)
	require.NoError(t, err)
	g = Build(res.Files)

	cycles, err = g.DetectCycles("a.ts")
	require.NoError(t, err)
	assert.Empty(t, cycles)

	chains, err := g.BackwardTrace("b.ts", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts"}, TracedFiles(chains))

	chains, err = g.ForwardTrace("a.ts", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.ts"}, TracedFiles(chains))

	chains, err = g.BackwardTrace("a.ts", 0)
	require.NoError(t, err)
	assert.Empty(t, chains)
}
