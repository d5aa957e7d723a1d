package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolIndexCodebase     = "index_codebase"
	ToolRetrieveContext   = "retrieve_context"
	ToolTraceDependencies = "trace_dependencies"
	ToolDetectCycles      = "detect_cycles"
	ToolFindDeadCode      = "find_dead_code"
	ToolBlastRadius       = "blast_radius"
	ToolContextStatus     = "context_status"
	ToolInvalidateContext = "invalidate_context"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolIndexCodebase,
		Description: "Index a project directory and make it the shared context for every other tool",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Discard the cached context and rebuild from scratch",
					"default":     false,
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "Index test files",
					"default":     true,
				},
				"languages": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Restrict indexing to these languages (default: all supported)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolRetrieveContext,
		Description: "Return the code chunks most relevant to an intent, packed into a token budget with citations",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "What you are trying to do or find",
				},
				"context": map[string]interface{}{
					"type":        "string",
					"description": "Extra text that sharpens the intent",
				},
				"anchor_file": map[string]interface{}{
					"type":        "string",
					"description": "File whose import neighborhood should be pulled in",
				},
				"anchor_symbol": map[string]interface{}{
					"type":        "string",
					"description": "Symbol whose declaring file anchors graph expansion",
				},
				"token_budget": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum tokens of returned code",
					"default":     4000,
					"minimum":     0,
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks",
					"default":     20,
					"minimum":     0,
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "Allow chunks from test files",
				},
				"include_config": map[string]interface{}{
					"type":        "boolean",
					"description": "Allow chunks from configuration files",
				},
				"include_neighbors": map[string]interface{}{
					"type":        "boolean",
					"description": "Expand results through the anchor's import neighborhood",
					"default":     true,
				},
			},
			Required: []string{"intent"},
		},
	}
}

// traceDependenciesTool returns the tool definition for trace_dependencies
func traceDependenciesTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolTraceDependencies,
		Description: "List the import chains leading out of (forward) or into (backward) a file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path, relative to the project root or absolute",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{directionForward, directionBackward, directionBoth},
					"description": "forward follows imports, backward follows importers",
					"default":     directionForward,
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum hops per chain",
					"default":     5,
					"minimum":     1,
				},
			},
			Required: []string{"file"},
		},
	}
}

// detectCyclesTool returns the tool definition for detect_cycles
func detectCyclesTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolDetectCycles,
		Description: "Find circular imports reachable from a file, or in the whole project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Start file; omit to scan every file",
				},
			},
		},
	}
}

// findDeadCodeTool returns the tool definition for find_dead_code
func findDeadCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolFindDeadCode,
		Description: "Report files unreachable from the entry points and exported symbols nothing uses",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entry_points": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Files the program starts from (main modules, public API)",
				},
				"include_exports": map[string]interface{}{
					"type":        "boolean",
					"description": "Also report unused exported symbols",
					"default":     true,
				},
			},
			Required: []string{"entry_points"},
		},
	}
}

// blastRadiusTool returns the tool definition for blast_radius
func blastRadiusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolBlastRadius,
		Description: "List the files affected by changing a file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path, relative to the project root or absolute",
				},
			},
			Required: []string{"file"},
		},
	}
}

// contextStatusTool returns the tool definition for context_status
func contextStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolContextStatus,
		Description: "Report whether a project is loaded and cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// invalidateContextTool returns the tool definition for invalidate_context
func invalidateContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolInvalidateContext,
		Description: "Drop changed files from the cached context, optionally re-indexing them",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Files, directories (trailing /) or glob patterns",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Discard the whole context",
					"default":     false,
				},
				"reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-index the given paths instead of only dropping them",
					"default":     false,
				},
			},
		},
	}
}
