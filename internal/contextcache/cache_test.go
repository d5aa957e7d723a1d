package contextcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codectx/internal/indexer"
	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/pkg/types"
)

// fakeIndexer counts builds and can hold them until release is closed.
type fakeIndexer struct {
	calls   atomic.Int32
	fail    atomic.Bool
	release chan struct{}
}

func (f *fakeIndexer) Index(ctx context.Context, root string, _ *indexer.Config) (*indexer.Result, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Load() {
		return nil, errors.New("disk on fire")
	}
	file := &types.IndexedFile{Path: filepath.Join(root, "a.ts"), RelPath: "a.ts", Language: "typescript"}
	return &indexer.Result{Root: root, Files: []*types.IndexedFile{file}}, nil
}

func (f *fakeIndexer) IndexPaths(ctx context.Context, root string, paths []string, cfg *indexer.Config) (*indexer.Result, []string, error) {
	return &indexer.Result{Root: root}, nil, nil
}

func createTestFile(t testing.TB, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	createTestFile(t, root, "src/a.ts", "import { b } from './b';\nexport function a() { return b(); }\n")
	createTestFile(t, root, "src/b.ts", "import { c } from './c';\nexport function b() { return c(); }\n")
	createTestFile(t, root, "src/c.ts", "export function c() { return 1; }\n")
	createTestFile(t, root, "tools/gen.py", "def gen():\n    return 1\n")
	return root
}

func newCache(idx Indexer) *Cache {
	return New(idx, WithLogger(logging.NewDiscard()))
}

func TestAccessorsBeforeInitialize(t *testing.T) {
	c := newCache(&fakeIndexer{})

	_, err := c.IndexedFiles()
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = c.DependencyGraph()
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = c.RootPath()
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = c.Chunks()
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = c.File("a.ts")
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = c.Invalidate(InvalidateOptions{Paths: []string{"a.ts"}})
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = c.Refresh(context.Background(), []string{"a.ts"})
	assert.ErrorIs(t, err, types.ErrNotInitialized)

	state := c.State()
	assert.False(t, state.Initialized)
	assert.False(t, state.InProgress)
}

func TestInitialize(t *testing.T) {
	root := newProject(t)
	c := newCache(indexer.New())
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx, root, nil))

	files, err := c.IndexedFiles()
	require.NoError(t, err)
	assert.Len(t, files, 4)

	got, err := c.RootPath()
	require.NoError(t, err)
	assert.Equal(t, root, got)

	g, err := c.DependencyGraph()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/b.ts"}, g.Imports("src/a.ts"))

	chunks, err := c.Chunks()
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	f, err := c.File("src/c.ts")
	require.NoError(t, err)
	assert.Equal(t, "typescript", f.Language)
	_, err = c.File("src/zzz.ts")
	assert.ErrorIs(t, err, types.ErrFileNotIndexed)

	state := c.State()
	assert.True(t, state.Initialized)
	assert.Equal(t, root, state.RootPath)
	assert.Equal(t, 4, state.FileCount)
	assert.Equal(t, len(chunks), state.ChunkCount)
	assert.False(t, state.LastIndexed.IsZero())
	assert.Positive(t, state.MemoryBytes)
}

func TestInitialize_SecondCallIsHit(t *testing.T) {
	idx := &fakeIndexer{}
	c := newCache(idx)
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx, "/proj", nil))
	require.NoError(t, c.Initialize(ctx, "/proj", indexer.DefaultConfig()))

	assert.Equal(t, int32(1), idx.calls.Load())
	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate, 1e-9)
}

func TestInitialize_ConcurrentCallersShareOneBuild(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	c := newCache(idx)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Initialize(context.Background(), "/proj", nil)
		}()
	}

	require.Eventually(t, func() bool { return idx.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Building())
	assert.True(t, c.State().InProgress)
	time.Sleep(20 * time.Millisecond)
	close(idx.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), idx.calls.Load())
	assert.Equal(t, int64(1), c.Stats().Builds)
	assert.Equal(t, int64(callers-1), c.Stats().Hits)
	assert.False(t, c.Building())
}

func TestInitialize_ConcurrentCallersShareFailure(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	idx.fail.Store(true)
	c := newCache(idx)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- c.Initialize(context.Background(), "/proj", nil) }()
	}
	require.Eventually(t, func() bool { return idx.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(idx.release)

	for i := 0; i < 2; i++ {
		assert.EqualError(t, <-errs, "disk on fire")
	}
	assert.Equal(t, int32(1), idx.calls.Load())
}

func TestInitialize_FailureReturnsToEmpty(t *testing.T) {
	idx := &fakeIndexer{}
	c := newCache(idx)
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx, "/first", nil))

	idx.fail.Store(true)
	err := c.Initialize(ctx, "/second", nil)
	require.Error(t, err)
	assert.False(t, c.State().Initialized)
	_, err = c.RootPath()
	assert.ErrorIs(t, err, types.ErrNotInitialized)

	idx.fail.Store(false)
	require.NoError(t, c.Initialize(ctx, "/second", nil))
	root, err := c.RootPath()
	require.NoError(t, err)
	assert.Equal(t, "/second", root)
}

func TestInitialize_InvalidRoot(t *testing.T) {
	c := newCache(indexer.New())

	err := c.Initialize(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, types.ErrInvalidRoot)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
	assert.False(t, c.State().Initialized)

	err = c.Initialize(context.Background(), "", nil)
	assert.ErrorIs(t, err, types.ErrInvalidRoot)
}

func TestInitialize_RebuildsOnChange(t *testing.T) {
	idx := &fakeIndexer{}
	c := newCache(idx)
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx, "/one", nil))
	require.NoError(t, c.Initialize(ctx, "/two", nil))
	assert.Equal(t, int32(2), idx.calls.Load())

	root, err := c.RootPath()
	require.NoError(t, err)
	assert.Equal(t, "/two", root)

	cfg := indexer.DefaultConfig()
	cfg.IncludeTests = false
	require.NoError(t, c.Initialize(ctx, "/two", cfg))
	assert.Equal(t, int32(3), idx.calls.Load())

	// Worker count does not change what gets indexed.
	cfg2 := indexer.DefaultConfig()
	cfg2.IncludeTests = false
	cfg2.Workers = 1
	require.NoError(t, c.Initialize(ctx, "/two", cfg2))
	assert.Equal(t, int32(3), idx.calls.Load())
}

func TestInitialize_WaiterCancellation(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	c := newCache(idx)

	done := make(chan error, 1)
	go func() { done <- c.Initialize(context.Background(), "/proj", nil) }()
	require.Eventually(t, func() bool { return idx.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Initialize(ctx, "/proj", nil), context.Canceled)

	close(idx.release)
	assert.NoError(t, <-done)
}

func TestInitialize_LeaderCancellationDoesNotFailWaiters(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	c := newCache(idx)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() { leader <- c.Initialize(leaderCtx, "/proj", nil) }()
	require.Eventually(t, func() bool { return idx.calls.Load() == 1 }, time.Second, time.Millisecond)

	waiter := make(chan error, 1)
	go func() { waiter <- c.Initialize(context.Background(), "/proj", nil) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leader, context.Canceled)

	close(idx.release)
	require.NoError(t, <-waiter)
	assert.True(t, c.State().Initialized)
	assert.Equal(t, int32(1), idx.calls.Load())
}

func TestInvalidate_Force(t *testing.T) {
	idx := &fakeIndexer{}
	c := newCache(idx)
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx, "/proj", nil))
	n, err := c.Invalidate(InvalidateOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, c.State().Initialized)

	require.NoError(t, c.Initialize(ctx, "/proj", nil))
	assert.Equal(t, int32(2), idx.calls.Load())
	assert.True(t, c.State().Initialized)
}

func TestInvalidate_ForceDuringBuild(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	c := newCache(idx)

	done := make(chan error, 1)
	go func() { done <- c.Initialize(context.Background(), "/proj", nil) }()
	require.Eventually(t, func() bool { return idx.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err := c.Invalidate(InvalidateOptions{Force: true})
	require.NoError(t, err)
	close(idx.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.False(t, c.State().Initialized)

	// The next Initialize starts a fresh build.
	idx.release = nil
	require.NoError(t, c.Initialize(context.Background(), "/proj", nil))
	assert.Equal(t, int32(2), idx.calls.Load())
}

func TestInvalidate_Paths(t *testing.T) {
	root := newProject(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		paths   []string
		removed []string
	}{
		{name: "relative path", paths: []string{"src/b.ts"}, removed: []string{"src/b.ts"}},
		{name: "absolute path", paths: []string{filepath.Join(root, "src", "c.ts")}, removed: []string{"src/c.ts"}},
		{name: "glob", paths: []string{"**/*.py"}, removed: []string{"tools/gen.py"}},
		{name: "directory", paths: []string{"src/"}, removed: []string{"src/a.ts", "src/b.ts", "src/c.ts"}},
		{name: "no match", paths: []string{"docs/**"}, removed: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCache(indexer.New())
			require.NoError(t, c.Initialize(ctx, root, nil))
			before, err := c.Snapshot()
			require.NoError(t, err)

			n, err := c.Invalidate(InvalidateOptions{Paths: tt.paths})
			require.NoError(t, err)
			assert.Equal(t, len(tt.removed), n)

			after, err := c.Snapshot()
			require.NoError(t, err)
			assert.Len(t, after.Files, 4-len(tt.removed))

			for _, rel := range tt.removed {
				_, ok := after.File(rel)
				assert.False(t, ok, rel)
				_, ok = after.Graph.Node(rel)
				assert.False(t, ok, rel)
				for _, ch := range after.Chunks {
					assert.NotEqual(t, rel, ch.FilePath)
				}
			}
			for _, e := range after.Graph.Edges() {
				assert.NotContains(t, tt.removed, e.To)
				assert.NotContains(t, tt.removed, e.From)
			}

			// Readers holding the old snapshot still see everything.
			assert.Len(t, before.Files, 4)
		})
	}
}

func TestRefresh(t *testing.T) {
	root := newProject(t)
	c := newCache(indexer.New())
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, root, nil))

	createTestFile(t, root, "src/c.ts", "import { a } from './a';\nexport function c() { return a(); }\nexport function d() {}\n")
	createTestFile(t, root, "src/e.ts", "export const e = 1;\n")
	require.NoError(t, os.Remove(filepath.Join(root, "tools", "gen.py")))

	res, err := c.Refresh(ctx, []string{"src/c.ts", "src/e.ts", "tools/gen.py", "README.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/c.ts", "src/e.ts"}, res.Updated)
	assert.Equal(t, []string{"tools/gen.py"}, res.Removed)
	assert.Equal(t, []string{"README.md"}, res.Skipped)

	files, err := c.IndexedFiles()
	require.NoError(t, err)
	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{"src/a.ts", "src/b.ts", "src/c.ts", "src/e.ts"}, rels)

	f, err := c.File("src/c.ts")
	require.NoError(t, err)
	assert.Len(t, f.Symbols, 2)

	g, err := c.DependencyGraph()
	require.NoError(t, err)
	cycles, err := g.DetectCycles("src/a.ts")
	require.NoError(t, err)
	assert.Len(t, cycles, 1)

	chunks, err := c.Chunks()
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.NotEqual(t, "tools/gen.py", ch.FilePath)
	}
}

func TestRefresh_UnknownPaths(t *testing.T) {
	root := newProject(t)
	c := newCache(indexer.New())
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, root, nil))

	res, err := c.Refresh(ctx, []string{"docs/missing.ts", filepath.Join(root, "nope.py")})
	require.NoError(t, err)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []string{"docs/missing.ts", filepath.Join(root, "nope.py")}, res.Skipped)

	files, err := c.IndexedFiles()
	require.NoError(t, err)
	assert.Len(t, files, 4)
}
