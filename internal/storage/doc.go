// Package storage persists extraction results in SQLite so that re-indexing
// a project only parses files whose content changed.
//
// # Database Schema
//
// Tables:
//   - projects: one row per project root, with file count and last index time
//   - files: per-file extraction results (symbols, dependency specifiers,
//     imported names) keyed by relative path and SHA-256 content hash
//   - schema_version: applied migrations
//
// Stored rows also carry the extractor version; results written by a
// different version of the extraction rules are never reused.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, filepath.Join(root, ".codectx", "index.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	idx := indexer.New(indexer.WithSnapshotStore(store))
//
// # Build Modes
//
// CGO builds use github.com/mattn/go-sqlite3. Builds without CGO, or with the
// purego tag, use modernc.org/sqlite. DriverName and BuildMode report which
// one is compiled in.
//
// # Migrations
//
// ApplyMigrations runs every migration newer than the recorded schema
// version, compared as semantic versions, each in its own transaction.
package storage
