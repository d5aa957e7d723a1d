package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/internal/parser"
	"github.com/dshills/codectx/pkg/types"
)

var (
	// ErrNotFound is returned when a requested project doesn't exist
	ErrNotFound = errors.New("not found")
)

// Store persists extraction results per project root so unchanged files can
// skip parsing on the next run. It satisfies indexer.SnapshotStore.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// ProjectInfo summarises one stored project.
type ProjectInfo struct {
	Root        string    `json:"root"`
	Files       int       `json:"files"`
	LastIndexed time.Time `json:"last_indexed"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer; one connection also keeps :memory: databases
	// alive for the life of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Open opens the database at dbPath, creating it and its directory when
// needed, and applies pending migrations. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	s.logger.Debug("storage opened", "path", dbPath, "driver", DriverName, "mode", BuildMode)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the stored extraction for relPath under root when both the
// content hash and the extractor version match.
func (s *Store) Lookup(ctx context.Context, root, relPath string, hash [32]byte) (*types.IndexedFile, bool, error) {
	query := `
		SELECT f.language, f.size_bytes, f.mod_time, f.is_test, f.complexity,
		       f.symbols, f.dependencies, f.imports
		FROM files f
		JOIN projects p ON p.id = f.project_id
		WHERE p.root_path = ? AND f.rel_path = ? AND f.content_hash = ? AND f.extractor_version = ?
	`
	row := s.db.QueryRowContext(ctx, query, root, relPath, hash[:], parser.Version)
	file, err := scanFile(row, "", false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s: %w", relPath, err)
	}
	file.RelPath = relPath
	file.Path = filepath.Join(root, filepath.FromSlash(relPath))
	file.ContentHash = hash
	return file, true, nil
}

// Save replaces the stored files of root with files.
func (s *Store) Save(ctx context.Context, root string, files []*types.IndexedFile) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (root_path, file_count, last_indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(root_path) DO UPDATE SET
			file_count = excluded.file_count,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = CURRENT_TIMESTAMP
	`, root, len(files), unixNano(now))
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}

	var projectID int64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM projects WHERE root_path = ?", root).Scan(&projectID); err != nil {
		return fmt.Errorf("failed to read project id: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM files WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (project_id, rel_path, language, content_hash, size_bytes, mod_time,
		                   is_test, complexity, symbols, dependencies, imports, extractor_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, f := range files {
		symbols, deps, imports, mErr := encodeFile(f)
		if mErr != nil {
			err = fmt.Errorf("encode %s: %w", f.RelPath, mErr)
			return err
		}
		_, err = stmt.ExecContext(ctx, projectID, f.RelPath, f.Language, f.ContentHash[:], f.Size,
			unixNano(f.ModTime), f.IsTest, f.Complexity, string(symbols), string(deps), string(imports), parser.Version)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", f.RelPath, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", "root", root, "files", len(files))
	return nil
}

// Files returns the stored files of root, sorted by relative path.
func (s *Store) Files(ctx context.Context, root string) ([]*types.IndexedFile, error) {
	if _, err := s.Project(ctx, root); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rel_path, f.content_hash, f.language, f.size_bytes, f.mod_time, f.is_test,
		       f.complexity, f.symbols, f.dependencies, f.imports
		FROM files f
		JOIN projects p ON p.id = f.project_id
		WHERE p.root_path = ?
		ORDER BY f.rel_path
	`, root)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*types.IndexedFile
	for rows.Next() {
		f, err := scanFile(rows, root, true)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Project returns the summary of root.
func (s *Store) Project(ctx context.Context, root string) (*ProjectInfo, error) {
	var (
		info ProjectInfo
		last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT root_path, file_count, last_indexed_at FROM projects WHERE root_path = ?", root,
	).Scan(&info.Root, &info.Files, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", root, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		info.LastIndexed = time.Unix(0, last.Int64)
	}
	return &info, nil
}

// Projects lists every stored project, sorted by root.
func (s *Store) Projects(ctx context.Context) ([]ProjectInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT root_path, file_count, last_indexed_at FROM projects ORDER BY root_path")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ProjectInfo
	for rows.Next() {
		var (
			info ProjectInfo
			last sql.NullInt64
		)
		if err := rows.Scan(&info.Root, &info.Files, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			info.LastIndexed = time.Unix(0, last.Int64)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteProject removes root and its files.
func (s *Store) DeleteProject(ctx context.Context, root string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE root_path = ?", root)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", root, ErrNotFound)
	}
	return nil
}

func encodeFile(f *types.IndexedFile) (symbols, deps, imports []byte, err error) {
	if symbols, err = json.Marshal(f.Symbols); err != nil {
		return nil, nil, nil, err
	}
	if deps, err = json.Marshal(f.Dependencies); err != nil {
		return nil, nil, nil, err
	}
	if imports, err = json.Marshal(f.Imports); err != nil {
		return nil, nil, nil, err
	}
	return symbols, deps, imports, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanFile scans the file columns. withPath means rel_path and content_hash
// come first.
func scanFile(row scanner, root string, withPath bool) (*types.IndexedFile, error) {
	var (
		f                      types.IndexedFile
		hash                   []byte
		modTime                int64
		symbols, deps, imports []byte
	)
	dest := []any{&f.Language, &f.Size, &modTime, &f.IsTest, &f.Complexity, &symbols, &deps, &imports}
	if withPath {
		dest = append([]any{&f.RelPath, &hash}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	copy(f.ContentHash[:], hash)
	f.Path = filepath.Join(root, filepath.FromSlash(f.RelPath))
	if modTime != 0 {
		f.ModTime = time.Unix(0, modTime)
	}

	if err := json.Unmarshal(symbols, &f.Symbols); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	if err := json.Unmarshal(deps, &f.Dependencies); err != nil {
		return nil, fmt.Errorf("decode dependencies: %w", err)
	}
	if err := json.Unmarshal(imports, &f.Imports); err != nil {
		return nil, fmt.Errorf("decode imports: %w", err)
	}
	return &f, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
