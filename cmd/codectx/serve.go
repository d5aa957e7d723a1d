package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/codectx/internal/mcp"
	"github.com/dshills/codectx/internal/storage"
)

var servePreload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the Model Context Protocol server on stdin/stdout.

With --preload the project root is indexed in the background at startup;
tools called before it finishes report that indexing is in progress.

Examples:
  codectx serve
  codectx serve --root ~/src/app --preload`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&servePreload, "preload", false, "Index --root at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := projectRoot(nil)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info("codectx starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName)

	opts := []mcp.Option{mcp.WithLogger(logger)}
	if cfg.Storage.Enabled {
		store, err := storage.Open(ctx, cfg.StoragePath(root), storage.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, mcp.WithStore(store))
	}

	srv, err := mcp.NewServer(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if servePreload {
		go func() {
			if err := srv.Cache().Initialize(ctx, root, cfg.IndexerConfig()); err != nil && ctx.Err() == nil {
				logger.Error("preload failed", "root", root, "error", err)
			}
		}()
	}

	err = srv.Serve(ctx, os.Stdin, os.Stdout)
	if err != nil && ctx.Err() != nil {
		logger.Info("server stopped")
		return nil
	}
	return err
}
