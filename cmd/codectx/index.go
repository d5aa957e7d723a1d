package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codectx/internal/storage"
)

var (
	indexForce      bool
	indexNoProgress bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a project and print statistics",
	Long: `Index every supported source file under path (default --root) and
report what was found. With storage enabled in the config, extraction
results are saved so the next run only parses changed files.

Examples:
  codectx index
  codectx index ./myproject --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Drop stored extraction results before indexing")
	indexCmd.Flags().BoolVar(&indexNoProgress, "no-progress", false, "Hide the progress bar")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(ctx, root, !indexNoProgress && !jsonFlag)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if indexForce && p.store != nil {
		if err := p.store.DeleteProject(ctx, root); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	snap, err := p.load(ctx)
	if err != nil {
		return err
	}
	stats := snap.Stats
	gstats := snap.Graph.Stats()

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, map[string]any{
			"root":       snap.Root,
			"statistics": stats,
			"graph":      gstats,
		})
	}

	fmt.Fprintf(out, "Indexed %s\n", snap.Root)
	fmt.Fprintf(out, "  files:     %d indexed, %d skipped, %d failed, %d reused\n",
		stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesReused)
	if stats.FilesTruncated > 0 {
		fmt.Fprintf(out, "  truncated: %d files over the limit\n", stats.FilesTruncated)
	}
	fmt.Fprintf(out, "  symbols:   %d\n", stats.SymbolsExtracted)
	fmt.Fprintf(out, "  chunks:    %d\n", stats.ChunksCreated)
	fmt.Fprintf(out, "  graph:     %d edges, %d external dependencies\n", gstats.Edges, gstats.ExternalDependencies)
	fmt.Fprintf(out, "  duration:  %s\n", stats.Duration.Round(time.Millisecond))

	langs := make([]string, 0, len(stats.Languages))
	for l := range stats.Languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		fmt.Fprintf(out, "    %-12s %d\n", l, stats.Languages[l])
	}
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
	return nil
}
