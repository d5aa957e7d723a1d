// Package mcp implements the Model Context Protocol (MCP) server for codectx.
//
// Every tool works against one shared context: the project indexed by the
// last index_codebase call. Tools other than index_codebase and
// context_status fail until that call succeeds.
//
//   - index_codebase: index a project and make it the shared context
//   - retrieve_context: ranked, cited chunks for an intent within a token budget
//   - trace_dependencies: forward or backward import chains of a file
//   - detect_cycles: circular imports from one file or project-wide
//   - find_dead_code: unreachable files and unused exports
//   - blast_radius: files affected by changing a file
//   - context_status: cache state and statistics
//   - invalidate_context: drop or re-index changed files
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
//	codectx serve
//
// # Tool: retrieve_context
//
//	Request:
//	{
//	  "name": "retrieve_context",
//	  "arguments": {
//	    "intent": "where are sessions refreshed",
//	    "anchor_file": "src/auth/session.ts",
//	    "token_budget": 2000
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "file_path": "src/auth/session.ts",
//	      "start_line": 12,
//	      "end_line": 40,
//	      "content": "export function refresh(...) {...}",
//	      "citation": {"file_path": "src/auth/session.ts", "line": 12, "symbol": "refresh", "relevance": 0.91}
//	    }
//	  ],
//	  "method": "bm25+semantic+graph",
//	  "confidence": 0.72,
//	  "total_tokens": 1840
//	}
//
// # Error Codes
//
//	-32602  Invalid params (missing intent, bad path, unknown direction)
//	-32603  Internal error
//	-32001  No project indexed
//	-32002  File not in the index
//	-32003  Context is still being built
package mcp
