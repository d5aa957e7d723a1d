package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/codectx/internal/mcp"
	"github.com/dshills/codectx/internal/parser"
	"github.com/dshills/codectx/internal/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if jsonFlag {
			return printJSON(out, map[string]string{
				"version":       version,
				"build_time":    buildTime,
				"mcp_server":    mcp.ServerVersion,
				"extractor":     parser.Version,
				"schema":        storage.CurrentSchemaVersion,
				"build_mode":    storage.BuildMode,
				"sqlite_driver": storage.DriverName,
				"tree_sitter":   fmt.Sprint(parser.GrammarsAvailable),
			})
		}
		fmt.Fprintf(out, "codectx %s\n", version)
		fmt.Fprintf(out, "Build Time:    %s\n", buildTime)
		fmt.Fprintf(out, "MCP Server:    %s\n", mcp.ServerVersion)
		fmt.Fprintf(out, "Extractor:     %s\n", parser.Version)
		fmt.Fprintf(out, "Schema:        %s\n", storage.CurrentSchemaVersion)
		fmt.Fprintf(out, "Build Mode:    %s\n", storage.BuildMode)
		fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		fmt.Fprintf(out, "Tree-sitter:   %v\n", parser.GrammarsAvailable)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
