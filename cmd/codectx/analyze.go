package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codectx/internal/graph"
)

var (
	traceDirection string
	traceDepth     int
	deadNoExports  bool
)

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Print the import chains of a file",
	Long: `Print the chains of imports leading out of a file (forward) or the
chains of importers leading into it (backward).

Examples:
  codectx trace src/app.ts
  codectx trace src/db.ts --direction backward --depth 3`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles [file]",
	Short: "Detect circular imports",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCycles,
}

var deadcodeCmd = &cobra.Command{
	Use:   "deadcode <entry-point...>",
	Short: "Find unreachable files and unused exports",
	Long: `Report files that no entry point reaches through imports, and exported
top-level symbols whose name never appears in another reachable file.

Examples:
  codectx deadcode src/main.ts
  codectx deadcode src/index.ts src/cli.ts --no-exports`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDeadcode,
}

var impactCmd = &cobra.Command{
	Use:   "impact <file>",
	Short: "Show the blast radius of changing a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImpact,
}

func init() {
	traceCmd.Flags().StringVar(&traceDirection, "direction", "forward", "forward, backward or both")
	traceCmd.Flags().IntVar(&traceDepth, "depth", graph.DefaultMaxDepth, "Maximum hops per chain")
	deadcodeCmd.Flags().BoolVar(&deadNoExports, "no-exports", false, "Only report unreachable files")
	rootCmd.AddCommand(traceCmd, cyclesCmd, deadcodeCmd, impactCmd)
}

// loadGraph indexes --root and returns its dependency graph.
func loadGraph(ctx context.Context) (*graph.Graph, string, error) {
	root, err := projectRoot(nil)
	if err != nil {
		return nil, "", err
	}
	p, err := openProject(ctx, root, false)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = p.Close() }()

	snap, err := p.load(ctx)
	if err != nil {
		return nil, "", err
	}
	return snap.Graph, snap.Root, nil
}

// graphKey maps a CLI path argument to a node key. Paths are taken relative
// to the project root unless they are absolute.
func graphKey(g *graph.Graph, root, file string) (string, error) {
	p := file
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	key, ok := g.Key(filepath.ToSlash(strings.TrimPrefix(p, "./")))
	if !ok {
		return "", fmt.Errorf("%s is not in the index", file)
	}
	return key, nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	if traceDirection != "forward" && traceDirection != "backward" && traceDirection != "both" {
		return fmt.Errorf("invalid direction %q: want forward, backward or both", traceDirection)
	}
	g, root, err := loadGraph(cmd.Context())
	if err != nil {
		return err
	}
	key, err := graphKey(g, root, args[0])
	if err != nil {
		return err
	}

	result := map[string][]graph.Chain{}
	if traceDirection != "backward" {
		if result["forward"], err = g.ForwardTrace(key, traceDepth); err != nil {
			return err
		}
	}
	if traceDirection != "forward" {
		if result["backward"], err = g.BackwardTrace(key, traceDepth); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, map[string]any{"file": key, "chains": result})
	}
	for _, dir := range []string{"forward", "backward"} {
		chains, ok := result[dir]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s chains from %s (%d):\n", dir, key, len(chains))
		if len(chains) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, c := range chains {
			fmt.Fprintf(out, "  %s -> %s\n", key, strings.Join(c.Files(), " -> "))
		}
	}
	return nil
}

func runCycles(cmd *cobra.Command, args []string) error {
	g, root, err := loadGraph(cmd.Context())
	if err != nil {
		return err
	}

	var cycles []graph.Cycle
	if len(args) == 1 {
		key, err := graphKey(g, root, args[0])
		if err != nil {
			return err
		}
		if cycles, err = g.DetectCycles(key); err != nil {
			return err
		}
	} else {
		cycles = g.DetectAllCycles()
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, map[string]any{"cycles": cycles, "count": len(cycles)})
	}
	if len(cycles) == 0 {
		fmt.Fprintln(out, "No import cycles found.")
		return nil
	}
	fmt.Fprintf(out, "%d import cycles:\n", len(cycles))
	for _, c := range cycles {
		fmt.Fprintf(out, "  [%s] %s -> %s\n", c.Severity, strings.Join(c.Files, " -> "), c.Files[0])
	}
	return nil
}

func runDeadcode(cmd *cobra.Command, args []string) error {
	g, root, err := loadGraph(cmd.Context())
	if err != nil {
		return err
	}

	var entries []string
	for _, a := range args {
		key, err := graphKey(g, root, a)
		if err != nil {
			return err
		}
		entries = append(entries, key)
	}

	unreachable := g.Unreachable(entries)
	var unused []graph.UnusedExport
	if !deadNoExports {
		unused = g.UnusedExports(entries, nil)
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, map[string]any{
			"entry_points":      entries,
			"unreachable_files": unreachable,
			"unused_exports":    unused,
		})
	}
	printList(out, "Unreachable files", unreachable)
	if !deadNoExports {
		lines := make([]string, len(unused))
		for i, u := range unused {
			lines[i] = fmt.Sprintf("%s:%d %s %s (%s)", u.File, u.Line, u.Kind, u.Symbol, u.Reason)
		}
		printList(out, "Unused exports", lines)
	}
	return nil
}

func runImpact(cmd *cobra.Command, args []string) error {
	g, root, err := loadGraph(cmd.Context())
	if err != nil {
		return err
	}
	key, err := graphKey(g, root, args[0])
	if err != nil {
		return err
	}
	impact, err := g.BlastRadius(key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, impact)
	}
	fmt.Fprintf(out, "Changing %s affects %d files (%s impact)\n", impact.File, impact.Total, impact.Level)
	printList(out, "Direct importers", impact.Direct)
	printList(out, "Transitive importers", impact.Transitive)
	return nil
}
