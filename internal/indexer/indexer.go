package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/codectx/internal/chunker"
	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/internal/parser"
	"github.com/dshills/codectx/pkg/types"
)

// SnapshotStore persists extraction results between runs so unchanged files
// skip parsing.
type SnapshotStore interface {
	// Lookup returns the stored file for relPath when its content hash matches.
	Lookup(ctx context.Context, root, relPath string, hash [32]byte) (*types.IndexedFile, bool, error)
	// Save replaces the stored file set for root.
	Save(ctx context.Context, root string, files []*types.IndexedFile) error
}

// ProgressFunc is called after each file is processed. Calls are serialized.
type ProgressFunc func(done, total int, relPath string)

// Statistics summarizes one Index run.
type Statistics struct {
	FilesDiscovered  int
	FilesIndexed     int
	FilesSkipped     int // oversized, no extractor, outside the language allow-list, or excluded tests
	FilesFailed      int
	FilesTruncated   int // dropped by the MaxFiles cap
	FilesReused      int // served from the snapshot store
	SymbolsExtracted int
	ChunksCreated    int
	Duration         time.Duration
	ErrorMessages    []string
	Languages        map[string]int
}

// Result is the output of Index.
type Result struct {
	Root   string
	Files  []*types.IndexedFile // sorted by RelPath
	Chunks []types.CodeChunk
	Stats  Statistics
}

// Indexer discovers, parses and chunks the files of a project.
type Indexer struct {
	parser   *parser.Parser
	chunker  *chunker.Chunker
	store    SnapshotStore
	progress ProgressFunc
	logger   *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSnapshotStore enables reuse of stored extraction results.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(idx *Indexer) { idx.store = s }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(idx *Indexer) { idx.progress = fn }
}

// WithMaxChunkTokens sets the chunk split threshold.
func WithMaxChunkTokens(n int) Option {
	return func(idx *Indexer) { idx.chunker = chunker.New(n) }
}

// New creates an Indexer.
func New(opts ...Option) *Indexer {
	idx := &Indexer{chunker: chunker.New(0)}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = logging.OrDiscard(idx.logger)
	idx.parser = parser.New(idx.logger)
	return idx
}

// Index indexes every eligible file under root. A nil cfg uses DefaultConfig.
// Per-file failures are counted in Statistics and never fail the run; an
// invalid root or configuration fails immediately.
func (idx *Indexer) Index(ctx context.Context, root string, cfg *Config) (*Result, error) {
	start := time.Now()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	found, err := discover(root, cfg)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	stats := Statistics{
		FilesDiscovered: found.discovered,
		FilesSkipped:    found.oversized,
		FilesTruncated:  found.truncated,
		Languages:       make(map[string]int),
	}
	if found.truncated > 0 {
		idx.logger.Warn("file limit reached", "limit", cfg.MaxFiles, "dropped", found.truncated)
	}

	type job struct {
		candidate
		language string
	}
	var jobs []job
	for _, c := range found.files {
		lang := parser.LanguageForPath(c.relPath)
		if lang == "" || !cfg.allowsLanguage(lang) || (!cfg.IncludeTests && parser.IsTestFile(c.relPath)) {
			stats.FilesSkipped++
			continue
		}
		jobs = append(jobs, job{candidate: c, language: lang})
	}

	type output struct {
		file   *types.IndexedFile
		chunks []types.CodeChunk
		reused bool
	}
	results := make([]output, len(jobs))

	var (
		mu     sync.Mutex
		done   atomic.Int32
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			file, chunks, reused, err := idx.indexFile(gctx, root, j.candidate, j.language)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				idx.logger.Warn("file failed", "path", j.relPath, "error", err)
				failed = append(failed, fmt.Sprintf("%s: %v", j.relPath, err))
			} else {
				results[i] = output{file: file, chunks: chunks, reused: reused}
			}
			if idx.progress != nil {
				idx.progress(int(done.Add(1)), len(jobs), j.relPath)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Root: root}
	for _, out := range results {
		if out.file == nil {
			continue
		}
		res.Files = append(res.Files, out.file)
		res.Chunks = append(res.Chunks, out.chunks...)
		stats.FilesIndexed++
		stats.SymbolsExtracted += len(out.file.Symbols)
		stats.Languages[out.file.Language]++
		if out.reused {
			stats.FilesReused++
		}
	}
	stats.FilesFailed = len(failed)
	stats.ErrorMessages = failed
	stats.ChunksCreated = len(res.Chunks)

	if idx.store != nil {
		if err := idx.store.Save(ctx, root, res.Files); err != nil {
			idx.logger.Warn("snapshot save failed", "root", root, "error", err)
		}
	}

	stats.Duration = time.Since(start)
	res.Stats = stats

	idx.logger.Info("indexing complete",
		"root", root,
		"files", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"reused", stats.FilesReused,
		"symbols", stats.SymbolsExtracted,
		"duration", stats.Duration)

	return res, nil
}

// IndexPaths re-indexes specific files under root, given as relative or
// absolute paths. Files that no longer exist are returned in missing.
func (idx *Indexer) IndexPaths(ctx context.Context, root string, paths []string, cfg *Config) (*Result, []string, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cfg = cfg.withDefaults()

	root, err := resolveRoot(root)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Root: root, Stats: Statistics{Languages: make(map[string]int)}}
	var missing []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, filepath.FromSlash(p))
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		info, err := os.Stat(abs)
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, rel)
			continue
		}
		res.Stats.FilesDiscovered++
		if err != nil || !info.Mode().IsRegular() || info.Size() > cfg.MaxFileSize {
			res.Stats.FilesSkipped++
			continue
		}
		lang := parser.LanguageForPath(rel)
		if lang == "" || !cfg.allowsLanguage(lang) || (!cfg.IncludeTests && parser.IsTestFile(rel)) {
			res.Stats.FilesSkipped++
			continue
		}

		file, chunks, _, err := idx.indexFile(ctx, root, candidate{path: abs, relPath: rel, size: info.Size()}, lang)
		if err != nil {
			res.Stats.FilesFailed++
			res.Stats.ErrorMessages = append(res.Stats.ErrorMessages, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		res.Files = append(res.Files, file)
		res.Chunks = append(res.Chunks, chunks...)
		res.Stats.FilesIndexed++
		res.Stats.SymbolsExtracted += len(file.Symbols)
		res.Stats.Languages[lang]++
	}
	res.Stats.ChunksCreated = len(res.Chunks)
	return res, missing, nil
}

func (idx *Indexer) indexFile(ctx context.Context, root string, c candidate, lang string) (*types.IndexedFile, []types.CodeChunk, bool, error) {
	content, err := os.ReadFile(c.path)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read: %w", err)
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, nil, false, fmt.Errorf("stat: %w", err)
	}

	file := &types.IndexedFile{
		Path:        c.path,
		RelPath:     c.relPath,
		Language:    lang,
		Size:        int64(len(content)),
		ModTime:     info.ModTime(),
		IsTest:      parser.IsTestFile(c.relPath),
		ContentHash: sha256.Sum256(content),
	}

	reused := false
	if idx.store != nil {
		stored, ok, err := idx.store.Lookup(ctx, root, c.relPath, file.ContentHash)
		if err != nil {
			idx.logger.Debug("snapshot lookup failed", "path", c.relPath, "error", err)
		} else if ok {
			file.Symbols = stored.Symbols
			file.Dependencies = stored.Dependencies
			file.Imports = stored.Imports
			file.Complexity = stored.Complexity
			reused = true
		}
	}

	if !reused {
		res := idx.parser.Parse(c.relPath, content, lang)
		file.Symbols = res.Symbols
		file.Dependencies = res.Dependencies
		file.Imports = res.Imports
		file.Complexity = parser.Complexity(lang, content, res.Symbols)
	}

	return file, idx.chunker.ChunkFile(file, content), reused, nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: %w", types.ErrInvalidRoot, types.NewConfigError("root", "root path is required"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrInvalidRoot, types.NewConfigError("root", err.Error()))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrInvalidRoot, types.NewConfigError("root", err.Error()))
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %w", types.ErrInvalidRoot, types.NewConfigError("root", abs+" is not a directory"))
	}
	return abs, nil
}
