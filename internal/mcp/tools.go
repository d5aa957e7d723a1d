package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codectx/internal/contextcache"
	"github.com/dshills/codectx/internal/graph"
	"github.com/dshills/codectx/internal/retrieval"
	"github.com/dshills/codectx/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotInitialized     = -32001 // No project has been indexed
	ErrorCodeNotFound           = -32002 // File or symbol is not in the index
	ErrorCodeIndexingInProgress = -32003 // The context is still being built
)

// Trace directions
const (
	directionForward  = "forward"
	directionBackward = "backward"
	directionBoth     = "both"
)

// maxReportedErrors caps per-file failures echoed back by index_codebase.
const maxReportedErrors = 5

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	cfg := s.cfg.IndexerConfig()
	cfg.IncludeTests = getBoolDefault(args, "include_tests", cfg.IncludeTests)
	if langs := getStringSlice(args, "languages"); len(langs) > 0 {
		cfg.Languages = langs
	}
	if err := cfg.Validate(); err != nil {
		return nil, s.toolError(err)
	}

	if getBoolDefault(args, "force", false) {
		if _, err := s.cache.Invalidate(contextcache.InvalidateOptions{Force: true}); err != nil {
			return nil, s.toolError(err)
		}
	}

	before, _ := s.cache.Snapshot()
	if err := s.cache.Initialize(ctx, path, cfg); err != nil {
		return nil, s.toolError(err)
	}
	snap, err := s.cache.Snapshot()
	if err != nil {
		return nil, s.toolError(err)
	}

	stats := snap.Stats
	gstats := snap.Graph.Stats()
	response := map[string]interface{}{
		"indexed":           true,
		"cached":            before == snap,
		"root":              snap.Root,
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"files_reused":      stats.FilesReused,
		"files_truncated":   stats.FilesTruncated,
		"symbols_extracted": stats.SymbolsExtracted,
		"chunks_created":    stats.ChunksCreated,
		"languages":         stats.Languages,
		"edges":             gstats.Edges,
		"external_deps":     gstats.ExternalDependencies,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		response["error_count"] = n
		response["errors"] = stats.ErrorMessages[:min(n, maxReportedErrors)]
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRetrieveContext handles the retrieve_context tool invocation
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := types.RetrievalQuery{
		Intent:       strings.TrimSpace(getStringDefault(args, "intent", "")),
		Context:      getStringDefault(args, "context", ""),
		AnchorFile:   getStringDefault(args, "anchor_file", ""),
		AnchorSymbol: getStringDefault(args, "anchor_symbol", ""),
		TokenBudget:  getIntDefault(args, "token_budget", s.cfg.Retrieve.TokenBudget),
		MaxResults:   getIntDefault(args, "max_results", 0),
	}
	if v, ok := args["include_tests"].(bool); ok {
		query.IncludeTests = &v
	}
	if v, ok := args["include_config"].(bool); ok {
		query.IncludeConfig = &v
	}

	opts := s.cfg.RetrievalOptions()
	opts.IncludeNeighbors = getBoolDefault(args, "include_neighbors", opts.IncludeNeighbors)

	result, err := s.retriever.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, s.toolError(err)
	}

	items := make([]map[string]interface{}, len(result.Chunks))
	for i, c := range result.Chunks {
		items[i] = map[string]interface{}{
			"id":         c.ID,
			"file_path":  c.FilePath,
			"start_line": c.StartLine,
			"end_line":   c.EndLine,
			"kind":       c.Kind,
			"language":   c.Language,
			"symbols":    c.Symbols,
			"tokens":     c.TokenCount,
			"content":    c.Content,
			"citation":   result.Citations[i],
		}
	}

	response := map[string]interface{}{
		"results":       items,
		"method":        result.Method,
		"confidence":    result.Confidence,
		"total_tokens":  result.TotalTokens,
		"token_budget":  query.TokenBudget,
		"processing_ms": result.ProcessingTime.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleTraceDependencies handles the trace_dependencies tool invocation
func (s *Server) handleTraceDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	file := getStringDefault(args, "file", "")
	if file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}
	direction := getStringDefault(args, "direction", directionForward)
	if direction != directionForward && direction != directionBackward && direction != directionBoth {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid direction", map[string]interface{}{
			"param":   "direction",
			"allowed": []string{directionForward, directionBackward, directionBoth},
		})
	}
	depth := getIntDefault(args, "max_depth", graph.DefaultMaxDepth)
	if depth < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_depth must be at least 1", map[string]interface{}{
			"param": "max_depth",
			"value": depth,
		})
	}

	g, err := s.graph()
	if err != nil {
		return nil, err
	}
	key, ok := g.Key(s.relative(file))
	if !ok {
		return nil, s.toolError(fmt.Errorf("%w: %s", types.ErrFileNotIndexed, file))
	}

	response := map[string]interface{}{
		"file":      key,
		"direction": direction,
		"max_depth": depth,
	}
	if direction != directionBackward {
		chains, err := g.ForwardTrace(key, depth)
		if err != nil {
			return nil, s.toolError(err)
		}
		response["forward"] = chainsJSON(chains)
		response["imports"] = g.Imports(key)
	}
	if direction != directionForward {
		chains, err := g.BackwardTrace(key, depth)
		if err != nil {
			return nil, s.toolError(err)
		}
		response["backward"] = chainsJSON(chains)
		response["importers"] = g.Importers(key)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDetectCycles handles the detect_cycles tool invocation
func (s *Server) handleDetectCycles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	g, err := s.graph()
	if err != nil {
		return nil, err
	}

	var cycles []graph.Cycle
	file := getStringDefault(args, "file", "")
	if file == "" {
		cycles = g.DetectAllCycles()
	} else {
		cycles, err = g.DetectCycles(s.relative(file))
		if err != nil {
			return nil, s.toolError(err)
		}
	}
	if cycles == nil {
		cycles = []graph.Cycle{}
	}

	response := map[string]interface{}{
		"cycles":    cycles,
		"count":     len(cycles),
		"has_cycle": len(cycles) > 0,
	}
	if file != "" {
		response["file"] = file
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindDeadCode handles the find_dead_code tool invocation
func (s *Server) handleFindDeadCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	entries := getStringSlice(args, "entry_points")
	if len(entries) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "entry_points parameter is required", map[string]interface{}{
			"param":  "entry_points",
			"reason": "missing or empty",
		})
	}

	g, err := s.graph()
	if err != nil {
		return nil, err
	}

	var known, unknown []string
	for _, e := range entries {
		if key, ok := g.Key(s.relative(e)); ok {
			known = append(known, key)
		} else {
			unknown = append(unknown, e)
		}
	}
	if len(known) == 0 {
		return nil, newMCPError(ErrorCodeNotFound, "no entry point is indexed", map[string]interface{}{
			"entry_points": entries,
		})
	}

	unreachable := g.Unreachable(known)
	if unreachable == nil {
		unreachable = []string{}
	}
	response := map[string]interface{}{
		"entry_points":      known,
		"unreachable_files": unreachable,
	}
	if len(unknown) > 0 {
		response["unknown_entry_points"] = unknown
	}
	if getBoolDefault(args, "include_exports", true) {
		unused := g.UnusedExports(known, nil)
		if unused == nil {
			unused = []graph.UnusedExport{}
		}
		response["unused_exports"] = unused
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBlastRadius handles the blast_radius tool invocation
func (s *Server) handleBlastRadius(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	file := getStringDefault(args, "file", "")
	if file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}

	g, err := s.graph()
	if err != nil {
		return nil, err
	}
	impact, err := g.BlastRadius(s.relative(file))
	if err != nil {
		return nil, s.toolError(err)
	}
	if impact.Direct == nil {
		impact.Direct = []string{}
	}
	if impact.Transitive == nil {
		impact.Transitive = []string{}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"file":       impact.File,
		"direct":     impact.Direct,
		"transitive": impact.Transitive,
		"total":      impact.Total,
		"level":      impact.Level,
	})), nil
}

// handleContextStatus handles the context_status tool invocation
func (s *Server) handleContextStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.cache.State()
	stats := s.cache.Stats()

	response := map[string]interface{}{
		"initialized":   state.Initialized,
		"in_progress":   state.InProgress,
		"file_count":    state.FileCount,
		"chunk_count":   state.ChunkCount,
		"hits":          state.Hits,
		"misses":        state.Misses,
		"hit_rate":      state.HitRate,
		"builds":        stats.Builds,
		"invalidations": stats.Invalidations,
		"memory_bytes":  state.MemoryBytes,
		"semantic":      s.embedder != nil,
	}
	if s.embedder != nil {
		response["embedding_provider"] = s.embedder.Provider()
		response["embedding_model"] = s.embedder.Model()
	}
	if state.Initialized {
		response["root_path"] = state.RootPath
		response["last_indexed"] = state.LastIndexed
		if g, err := s.cache.DependencyGraph(); err == nil {
			response["graph"] = g.Stats()
		}
	}
	if s.store != nil {
		store := map[string]interface{}{"path": s.store.Path()}
		if state.Initialized {
			if info, err := s.store.Project(ctx, state.RootPath); err == nil {
				store["files"] = info.Files
				store["last_saved"] = info.LastIndexed
			}
		}
		response["store"] = store
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInvalidateContext handles the invalidate_context tool invocation
func (s *Server) handleInvalidateContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	paths := getStringSlice(args, "paths")
	force := getBoolDefault(args, "force", false)
	reindex := getBoolDefault(args, "reindex", false)
	if !force && len(paths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths or force is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})
	}

	if reindex && !force {
		res, err := s.cache.Refresh(ctx, paths)
		if err != nil {
			return nil, s.toolError(err)
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"reindexed": true,
			"updated":   nonNil(res.Updated),
			"removed":   nonNil(res.Removed),
			"skipped":   nonNil(res.Skipped),
		})), nil
	}

	removed, err := s.cache.Invalidate(contextcache.InvalidateOptions{Paths: paths, Force: force})
	if err != nil {
		return nil, s.toolError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"invalidated":   true,
		"force":         force,
		"files_removed": removed,
	})), nil
}

// graph returns the cached dependency graph or the matching tool error.
func (s *Server) graph() (*graph.Graph, error) {
	g, err := s.cache.DependencyGraph()
	if err != nil {
		return nil, s.toolError(err)
	}
	return g, nil
}

// relative turns an absolute path under the cached root into a graph key.
func (s *Server) relative(p string) string {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(strings.TrimPrefix(p, "./"))
	}
	root, err := s.cache.RootPath()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}

// toolError maps domain errors onto MCP error codes.
func (s *Server) toolError(err error) error {
	var stage *retrieval.StageError
	data := map[string]interface{}{"error": err.Error()}
	if errors.As(err, &stage) {
		data["stage"] = stage.Stage
	}

	switch {
	case errors.Is(err, types.ErrNotInitialized):
		if s.cache.Building() {
			return newMCPError(ErrorCodeIndexingInProgress, "context is being built", data)
		}
		return newMCPError(ErrorCodeNotInitialized, "no project indexed; call index_codebase first", data)
	case errors.Is(err, types.ErrFileNotIndexed), errors.Is(err, types.ErrSymbolNotFound):
		return newMCPError(ErrorCodeNotFound, "not found in index", data)
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeInvalidParams, "intent parameter is required and cannot be empty", data)
	case errors.Is(err, types.ErrInvalidConfig), errors.Is(err, types.ErrInvalidRoot):
		return newMCPError(ErrorCodeInvalidParams, "invalid parameters", data)
	case errors.Is(err, contextcache.ErrSuperseded):
		return newMCPError(ErrorCodeIndexingInProgress, "build superseded by invalidation; retry", data)
	default:
		return newMCPError(ErrorCodeInternalError, "internal error", data)
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	if m, ok := e.Data.(map[string]interface{}); ok {
		if detail, ok := m["error"].(string); ok {
			return fmt.Sprintf("MCP error %d: %s: %s", e.Code, e.Message, detail)
		}
	}
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory.
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

func chainsJSON(chains []graph.Chain) []graph.Chain {
	if chains == nil {
		return []graph.Chain{}
	}
	return chains
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, true
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter. JSON arrays decode as
// []interface{}; non-string and empty items are skipped.
func getStringSlice(args map[string]interface{}, key string) []string {
	var out []string
	switch v := args[key].(type) {
	case []string:
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case string:
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
