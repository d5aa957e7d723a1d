package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dshills/codectx/internal/config"
	"github.com/dshills/codectx/internal/contextcache"
	"github.com/dshills/codectx/internal/indexer"
	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/internal/storage"
)

var (
	configFlag   string
	rootFlag     string
	logLevelFlag string
	jsonFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "codectx",
	Short: "codectx - codebase context and retrieval engine",
	Long: `codectx indexes a source tree, builds its file dependency graph and
serves token-budgeted, cited code context to coding agents over MCP.

Examples:
  codectx serve --root .
  codectx index ./myproject
  codectx retrieve "where are sessions refreshed" --budget 2000
  codectx trace src/app.ts --direction backward`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: codectx.yaml or .codectx/config.yaml in the project root)")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".", "Project root")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")
}

// project is the per-command environment: configuration, logger, optional
// snapshot store and the context cache for one root.
type project struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.Store
	cache  *contextcache.Cache
}

// projectRoot resolves the positional root argument, falling back to --root.
func projectRoot(args []string) (string, error) {
	root := rootFlag
	if len(args) > 0 && args[0] != "" {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	return abs, nil
}

// loadConfig reads --config or the project's config file.
func loadConfig(root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.Load(configFlag)
	} else {
		cfg, err = config.LoadFromDir(root)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	return cfg, nil
}

// newLogger writes to stderr; stdout is reserved for results and MCP.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, logging.LevelFromString(cfg.Logging.Level))
}

// openProject loads configuration and opens the snapshot store when enabled.
// Nothing is indexed yet.
func openProject(ctx context.Context, root string, progress bool) (*project, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	p := &project{root: root, cfg: cfg, logger: newLogger(cfg)}

	if cfg.Storage.Enabled {
		p.store, err = storage.Open(ctx, cfg.StoragePath(root), storage.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
	}

	opts := []indexer.Option{indexer.WithLogger(p.logger)}
	if p.store != nil {
		opts = append(opts, indexer.WithSnapshotStore(p.store))
	}
	if progress {
		opts = append(opts, indexer.WithProgress(newProgress()))
	}
	p.cache = contextcache.New(indexer.New(opts...), contextcache.WithLogger(p.logger))
	return p, nil
}

// load indexes the project into the cache.
func (p *project) load(ctx context.Context) (*contextcache.Snapshot, error) {
	if err := p.cache.Initialize(ctx, p.root, p.cfg.IndexerConfig()); err != nil {
		return nil, err
	}
	return p.cache.Snapshot()
}

func (p *project) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// newProgress draws a bar on stderr once the first file reports the total.
func newProgress() indexer.ProgressFunc {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int, relPath string) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}
}
