// Package contextcache holds the indexed project shared by every request
// handler in a process: the file index, its chunks and its dependency graph.
//
// The cache moves between three states. It starts Empty, becomes
// Initializing while a build runs and Ready once the build succeeds. A failed
// build returns it to Empty. Concurrent Initialize calls for the same root and
// configuration share one build and all observe its outcome.
//
// Readers get immutable snapshots and never block writers.
package contextcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/codectx/internal/graph"
	"github.com/dshills/codectx/internal/indexer"
	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/pkg/types"
)

var tracer = otel.Tracer("github.com/dshills/codectx/internal/contextcache")

// ErrSuperseded is returned to Initialize callers whose build finished after a
// forced invalidation.
var ErrSuperseded = errors.New("build superseded by invalidation")

// Indexer produces file indexes. *indexer.Indexer satisfies it.
type Indexer interface {
	Index(ctx context.Context, root string, cfg *indexer.Config) (*indexer.Result, error)
	IndexPaths(ctx context.Context, root string, paths []string, cfg *indexer.Config) (*indexer.Result, []string, error)
}

// Snapshot is one published, immutable view of the project.
type Snapshot struct {
	Root      string
	Config    *indexer.Config
	Files     []*types.IndexedFile // sorted by RelPath
	Chunks    []types.CodeChunk
	Graph     *graph.Graph
	Stats     indexer.Statistics
	IndexedAt time.Time

	fingerprint string
	byPath      map[string]*types.IndexedFile
}

func newSnapshot(root string, cfg *indexer.Config, files []*types.IndexedFile, chunks []types.CodeChunk, g *graph.Graph, stats indexer.Statistics) *Snapshot {
	s := &Snapshot{
		Root:        root,
		Config:      cfg,
		Files:       files,
		Chunks:      chunks,
		Graph:       g,
		Stats:       stats,
		IndexedAt:   time.Now(),
		fingerprint: cfg.Fingerprint(),
		byPath:      make(map[string]*types.IndexedFile, len(files)),
	}
	for _, f := range files {
		s.byPath[f.RelPath] = f
		s.byPath[f.Path] = f
	}
	return s
}

// File returns the indexed file for a relative or absolute path.
func (s *Snapshot) File(path string) (*types.IndexedFile, bool) {
	f, ok := s.byPath[path]
	if !ok {
		f, ok = s.byPath[filepath.ToSlash(filepath.Clean(path))]
	}
	return f, ok
}

// MemoryBytes estimates the memory held by the snapshot.
func (s *Snapshot) MemoryBytes() int64 {
	var n int64
	for _, f := range s.Files {
		n += int64(len(f.Path)+len(f.RelPath)) + 128
		for _, sym := range f.Symbols {
			n += int64(len(sym.Name)+len(sym.Doc)+len(sym.ReturnType)+len(sym.Parent)) + 96
		}
		for _, d := range f.Dependencies {
			n += int64(len(d)) + 16
		}
	}
	for _, c := range s.Chunks {
		n += int64(len(c.ID)+len(c.Content)+len(c.FilePath)) + 160
	}
	return n
}

// Stats reports cache activity.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Builds        int64   `json:"builds"`
	Invalidations int64   `json:"invalidations"`
	MemoryBytes   int64   `json:"memory_bytes"`
}

// InvalidateOptions selects what Invalidate drops.
type InvalidateOptions struct {
	// Paths are relative paths, absolute paths, directories ending in "/"
	// or doublestar globs.
	Paths []string
	// Force discards the whole snapshot.
	Force bool
}

// RefreshResult lists what Refresh changed.
type RefreshResult struct {
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
	Skipped []string `json:"skipped,omitempty"`
}

// Cache is the shared project context. The zero value is not usable; call New.
type Cache struct {
	indexer Indexer
	logger  *slog.Logger

	group      singleflight.Group
	snap       atomic.Pointer[Snapshot]
	generation atomic.Uint64
	building   atomic.Int32

	hits          atomic.Int64
	misses        atomic.Int64
	builds        atomic.Int64
	invalidations atomic.Int64

	mu sync.Mutex // serializes snapshot publication

	// lifetime is canceled by a forced invalidation. Builds run under it
	// rather than under the context of the caller that started them.
	lifetime context.Context
	cancel   context.CancelFunc
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an empty cache backed by idx.
func New(idx Indexer, opts ...Option) *Cache {
	c := &Cache{indexer: idx}
	c.lifetime, c.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// Initialize makes root the cached project. It is a no-op when root is
// already cached with an equivalent configuration. A nil cfg uses
// indexer.DefaultConfig.
func (c *Cache) Initialize(ctx context.Context, root string, cfg *indexer.Config) error {
	ctx, span := tracer.Start(ctx, "contextcache.Cache.Initialize",
		trace.WithAttributes(attribute.String("root", root)))
	defer span.End()

	if err := c.initialize(ctx, root, cfg, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialize failed")
		return err
	}
	return nil
}

func (c *Cache) initialize(ctx context.Context, root string, cfg *indexer.Config, span trace.Span) error {
	if cfg == nil {
		cfg = indexer.DefaultConfig()
	}
	if root == "" {
		return fmt.Errorf("%w: %w", types.ErrInvalidRoot, types.NewConfigError("root", "root path is required"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRoot, types.NewConfigError("root", err.Error()))
	}
	fingerprint := cfg.Fingerprint()

	if s := c.snap.Load(); s != nil && s.Root == abs && s.fingerprint == fingerprint {
		c.hits.Add(1)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		c.logger.Debug("context cache hit", "root", abs)
		return nil
	}

	gen := c.generation.Load()
	key := fmt.Sprintf("%d\x00%s\x00%s", gen, abs, fingerprint)
	leader := false
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		bctx, stop := c.buildContext(ctx)
		defer stop()
		return nil, c.build(bctx, abs, cfg, gen)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		if !leader {
			// Joined a build started by another caller.
			c.hits.Add(1)
		}
		span.SetAttributes(attribute.Bool("cache_hit", !leader))
		return r.Err
	}
}

// buildContext keeps the values of ctx but not its cancellation: waiters
// share the build, so one caller going away must not fail it for the rest.
// Only a forced invalidation stops it.
func (c *Cache) buildContext(ctx context.Context) (context.Context, func()) {
	c.mu.Lock()
	lifetime := c.lifetime
	c.mu.Unlock()

	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(lifetime, cancel)
	return bctx, func() {
		stop()
		cancel()
	}
}

func (c *Cache) build(ctx context.Context, root string, cfg *indexer.Config, gen uint64) error {
	c.building.Add(1)
	defer c.building.Add(-1)
	c.misses.Add(1)
	c.builds.Add(1)

	if s := c.snap.Load(); s != nil && s.Root != root {
		c.logger.Info("project root changed, discarding context", "old", s.Root, "new", root)
		c.publish(nil, gen)
	}
	c.logger.Info("building context", "root", root)

	res, err := c.indexer.Index(ctx, root, cfg)
	if err != nil {
		if !c.publish(nil, gen) {
			return ErrSuperseded
		}
		c.logger.Error("context build failed", "root", root, "error", err)
		return err
	}

	snap := newSnapshot(res.Root, cfg, res.Files, res.Chunks, graph.Build(res.Files), res.Stats)
	if !c.publish(snap, gen) {
		return ErrSuperseded
	}

	c.logger.Info("context ready",
		"root", snap.Root,
		"files", len(snap.Files),
		"chunks", len(snap.Chunks),
		"edges", snap.Graph.Stats().Edges)
	return nil
}

// publish stores s unless a forced invalidation happened since gen.
func (c *Cache) publish(s *Snapshot, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen {
		return false
	}
	c.snap.Store(s)
	return true
}

// Invalidate drops cached state. Force empties the cache; otherwise files
// matching Paths are removed from the snapshot, along with their chunks and
// every graph edge touching them. Nothing is re-indexed. It returns the
// number of files removed.
func (c *Cache) Invalidate(opts InvalidateOptions) (int, error) {
	c.invalidations.Add(1)

	if opts.Force {
		c.mu.Lock()
		defer c.mu.Unlock()
		removed := 0
		if s := c.snap.Load(); s != nil {
			removed = len(s.Files)
		}
		c.generation.Add(1)
		c.snap.Store(nil)
		c.cancel()
		c.lifetime, c.cancel = context.WithCancel(context.Background())
		c.logger.Info("context invalidated", "files", removed)
		return removed, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap.Load()
	if s == nil {
		return 0, types.ErrNotInitialized
	}

	var drop []string
	keep := make([]*types.IndexedFile, 0, len(s.Files))
	for _, f := range s.Files {
		if matchesAny(opts.Paths, s.Root, f) {
			drop = append(drop, f.RelPath)
			continue
		}
		keep = append(keep, f)
	}
	if len(drop) == 0 {
		return 0, nil
	}

	next := newSnapshot(s.Root, s.Config, keep, filterChunks(s.Chunks, drop), s.Graph.RemoveNodes(drop), s.Stats)
	next.IndexedAt = s.IndexedAt
	c.snap.Store(next)
	c.logger.Info("context partially invalidated", "files", len(drop))
	return len(drop), nil
}

// Refresh re-indexes paths and merges the result into the snapshot. Paths
// that no longer exist are removed. The graph is rebuilt from the merged
// file set.
func (c *Cache) Refresh(ctx context.Context, paths []string) (*RefreshResult, error) {
	s := c.snap.Load()
	if s == nil {
		return nil, types.ErrNotInitialized
	}
	gen := c.generation.Load()

	res, missing, err := c.indexer.IndexPaths(ctx, s.Root, paths, s.Config)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen {
		return nil, ErrSuperseded
	}
	s = c.snap.Load()
	if s == nil {
		return nil, types.ErrNotInitialized
	}

	out := &RefreshResult{Removed: []string{}}
	changed := make(map[string]*types.IndexedFile, len(res.Files))
	for _, f := range res.Files {
		changed[f.RelPath] = f
		out.Updated = append(out.Updated, f.RelPath)
	}
	gone := make(map[string]bool, len(missing))
	for _, m := range missing {
		gone[m] = true
	}

	files := make([]*types.IndexedFile, 0, len(s.Files)+len(res.Files))
	for _, f := range s.Files {
		switch {
		case gone[f.RelPath]:
			out.Removed = append(out.Removed, f.RelPath)
		case changed[f.RelPath] != nil:
			// replaced below
		default:
			files = append(files, f)
		}
	}
	files = append(files, res.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	replaced := append(append([]string(nil), out.Updated...), out.Removed...)
	chunks := append(filterChunks(s.Chunks, replaced), res.Chunks...)

	for _, p := range paths {
		if !containsPath(out.Updated, p, s.Root) && !containsPath(out.Removed, p, s.Root) {
			out.Skipped = append(out.Skipped, p)
		}
	}

	c.snap.Store(newSnapshot(s.Root, s.Config, files, chunks, graph.Build(files), s.Stats))
	c.logger.Info("context refreshed", "updated", len(out.Updated), "removed", len(out.Removed))
	return out, nil
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() (*Snapshot, error) {
	s := c.snap.Load()
	if s == nil {
		return nil, types.ErrNotInitialized
	}
	return s, nil
}

// IndexedFiles returns the cached files sorted by relative path.
func (c *Cache) IndexedFiles() ([]*types.IndexedFile, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Files, nil
}

// DependencyGraph returns the cached dependency graph.
func (c *Cache) DependencyGraph() (*graph.Graph, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Graph, nil
}

// Chunks returns the cached code chunks.
func (c *Cache) Chunks() ([]types.CodeChunk, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Chunks, nil
}

// RootPath returns the cached project root.
func (c *Cache) RootPath() (string, error) {
	s, err := c.Snapshot()
	if err != nil {
		return "", err
	}
	return s.Root, nil
}

// File returns one cached file.
func (c *Cache) File(path string) (*types.IndexedFile, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	f, ok := s.File(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotIndexed, path)
	}
	return f, nil
}

// Building reports whether a build is in flight.
func (c *Cache) Building() bool {
	return c.building.Load() > 0
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	st := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Builds:        c.builds.Load(),
		Invalidations: c.invalidations.Load(),
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	if s := c.snap.Load(); s != nil {
		st.MemoryBytes = s.MemoryBytes()
	}
	return st
}

// State returns a point-in-time summary of the cache.
func (c *Cache) State() types.ContextState {
	st := c.Stats()
	state := types.ContextState{
		InProgress:  c.Building(),
		Hits:        st.Hits,
		Misses:      st.Misses,
		HitRate:     st.HitRate,
		MemoryBytes: st.MemoryBytes,
	}
	if s := c.snap.Load(); s != nil {
		state.Initialized = true
		state.RootPath = s.Root
		state.FileCount = len(s.Files)
		state.ChunkCount = len(s.Chunks)
		state.LastIndexed = s.IndexedAt
	}
	return state
}

func matchesAny(patterns []string, root string, f *types.IndexedFile) bool {
	for _, p := range patterns {
		if p == f.RelPath || p == f.Path {
			return true
		}
		rel := p
		if filepath.IsAbs(p) {
			r, err := filepath.Rel(root, p)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(r)
			if strings.HasSuffix(p, string(filepath.Separator)) {
				rel += "/"
			}
		}
		if strings.HasSuffix(rel, "/") && strings.HasPrefix(f.RelPath, rel) {
			return true
		}
		if ok, err := doublestar.Match(rel, f.RelPath); err == nil && ok {
			return true
		}
	}
	return false
}

func filterChunks(chunks []types.CodeChunk, drop []string) []types.CodeChunk {
	if len(drop) == 0 {
		return chunks
	}
	gone := make(map[string]bool, len(drop))
	for _, d := range drop {
		gone[d] = true
	}
	out := make([]types.CodeChunk, 0, len(chunks))
	for _, ch := range chunks {
		if !gone[ch.FilePath] {
			out = append(out, ch)
		}
	}
	return out
}

func containsPath(list []string, p, root string) bool {
	rel := p
	if filepath.IsAbs(p) {
		if r, err := filepath.Rel(root, p); err == nil {
			rel = filepath.ToSlash(r)
		}
	}
	rel = strings.TrimPrefix(rel, "./")
	for _, v := range list {
		if v == rel {
			return true
		}
	}
	return false
}
