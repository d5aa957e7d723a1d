// Package types provides shared type definitions for the codectx engine.
//
// This package defines the data model passed between the indexer, the
// dependency graph, the shared context cache and the retrieval pipeline.
//
// # Core Types
//
// Symbol is a declaration extracted from a source file:
//
//	sym := types.Symbol{
//	    Name:     "ParseFile",
//	    Kind:     types.KindFunction,
//	    Exported: true,
//	    Start:    types.Position{Line: 12, Column: 1},
//	    End:      types.Position{Line: 40, Column: 2},
//	}
//
// IndexedFile holds one source file's symbols, raw dependency specifiers and
// metadata. It is immutable once produced by the indexer and replaced wholesale
// on re-index.
//
// CodeChunk is the atomic retrieval unit. Its TokenCount is estimated at four
// characters per token:
//
//	chunk.ComputeTokenCount() // len(Content) / 4
//
// # Retrieval
//
// RetrievalQuery and RetrievalOptions describe a request; RetrievalResult holds
// the selected chunks with one Citation per chunk and a confidence score in
// [0, 1].
//
// # Errors
//
// ErrNotInitialized is returned by every cache accessor called before the
// first successful build. Configuration problems are reported as *ConfigError,
// which matches ErrInvalidConfig under errors.Is.
package types
