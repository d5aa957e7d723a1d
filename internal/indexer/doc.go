// Package indexer walks a project root and produces the file index used by
// the rest of the engine.
//
// # Basic Usage
//
//	idx := indexer.New(indexer.WithLogger(logger))
//
//	res, err := idx.Index(ctx, "/path/to/project", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Indexed %d files in %v\n", res.Stats.FilesIndexed, res.Stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the root, apply include/exclude globs and .gitignore,
//     drop oversized files, sort by relative path and apply the MaxFiles cap
//  2. Classification: resolve each file's language and skip files outside
//     the language allow-list (and test files when IncludeTests is false)
//  3. Extraction: parse symbols and imports on a bounded worker pool
//  4. Chunking: split each file into token-bounded code chunks
//
// A file that fails to read is recorded in Statistics.ErrorMessages and the
// run continues. Malformed source never fails: the parser logs and returns
// what it could salvage. An invalid root or configuration fails the whole
// call with an error wrapping types.ErrInvalidConfig.
//
// # Snapshots
//
// WithSnapshotStore lets a store serve extraction results for files whose
// SHA-256 content hash is unchanged since the last Save. Reused files are
// still chunked because chunks are derived from the current content.
//
// # Partial Refresh
//
// IndexPaths re-indexes a named subset of files and reports which of them no
// longer exist, so callers can patch an existing index in place.
package indexer
