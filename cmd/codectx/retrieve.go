package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codectx/internal/embedder"
	"github.com/dshills/codectx/internal/retrieval"
	"github.com/dshills/codectx/pkg/types"
)

var (
	retrieveBudget        int
	retrieveMaxResults    int
	retrieveAnchorFile    string
	retrieveAnchorSymbol  string
	retrieveContext       string
	retrieveIncludeTests  bool
	retrieveIncludeConfig bool
	retrieveNoSemantic    bool
	retrieveNoNeighbors   bool
	retrieveNoContent     bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <intent...>",
	Short: "Retrieve cited code context for an intent",
	Long: `Index the project, then return the chunks most relevant to the intent,
packed into the token budget.

Examples:
  codectx retrieve "parse config file"
  codectx retrieve refresh token --anchor-file src/auth/session.ts --budget 1500
  codectx retrieve "error handling" --include-tests --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	f := retrieveCmd.Flags()
	f.IntVar(&retrieveBudget, "budget", 0, "Token budget (default from config)")
	f.IntVar(&retrieveMaxResults, "max-results", 0, "Maximum chunks (default from config)")
	f.StringVar(&retrieveAnchorFile, "anchor-file", "", "File whose import neighborhood is pulled in")
	f.StringVar(&retrieveAnchorSymbol, "anchor-symbol", "", "Symbol whose declaring file anchors expansion")
	f.StringVar(&retrieveContext, "context", "", "Extra text that sharpens the intent")
	f.BoolVar(&retrieveIncludeTests, "include-tests", false, "Allow chunks from test files")
	f.BoolVar(&retrieveIncludeConfig, "include-config", false, "Allow chunks from configuration files")
	f.BoolVar(&retrieveNoSemantic, "no-semantic", false, "Skip embedding rerank")
	f.BoolVar(&retrieveNoNeighbors, "no-neighbors", false, "Skip graph expansion")
	f.BoolVar(&retrieveNoContent, "citations-only", false, "Print citations without chunk content")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, err := projectRoot(nil)
	if err != nil {
		return err
	}
	p, err := openProject(ctx, root, false)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if _, err := p.load(ctx); err != nil {
		return err
	}

	var similarity retrieval.SimilarityProvider
	if p.cfg.Embedding.Enabled && !retrieveNoSemantic {
		emb, err := embedder.New(p.cfg.EmbedderConfig())
		if err != nil {
			p.logger.Warn("semantic rerank disabled", "error", err)
		} else {
			sim := embedder.NewSimilarity(emb)
			defer func() { _ = sim.Close() }()
			similarity = sim
		}
	}
	orch := retrieval.New(p.cache, similarity,
		retrieval.WithLogger(p.logger),
		retrieval.WithSimilarityCacheSize(p.cfg.Retrieve.SimilarityCache))

	budget := retrieveBudget
	if budget == 0 {
		budget = p.cfg.Retrieve.TokenBudget
	}
	query := types.RetrievalQuery{
		Intent:       strings.Join(args, " "),
		Context:      retrieveContext,
		AnchorFile:   retrieveAnchorFile,
		AnchorSymbol: retrieveAnchorSymbol,
		TokenBudget:  budget,
		MaxResults:   retrieveMaxResults,
	}
	if cmd.Flags().Changed("include-tests") {
		query.IncludeTests = &retrieveIncludeTests
	}
	if cmd.Flags().Changed("include-config") {
		query.IncludeConfig = &retrieveIncludeConfig
	}
	opts := p.cfg.RetrievalOptions()
	if retrieveNoNeighbors {
		opts.IncludeNeighbors = false
	}

	result, err := orch.Retrieve(ctx, query, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "%d chunks, %d/%d tokens, method %s, confidence %.2f\n",
		len(result.Chunks), result.TotalTokens, budget, result.Method, result.Confidence)
	for i, c := range result.Chunks {
		cite := result.Citations[i]
		label := cite.FilePath + ":" + fmt.Sprint(cite.Line)
		if cite.Symbol != "" {
			label += " " + cite.Symbol
		}
		fmt.Fprintf(out, "\n[%d] %s (relevance %.2f)\n", i+1, label, cite.Relevance)
		if retrieveNoContent {
			fmt.Fprintf(out, "    %s\n", cite.Snippet)
			continue
		}
		fmt.Fprintln(out, indent(c.Content, "    "))
	}
	return nil
}
