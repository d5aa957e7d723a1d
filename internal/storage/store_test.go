package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", WithLogger(logging.NewDiscard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleFile(rel, content string) *types.IndexedFile {
	return &types.IndexedFile{
		Path:     "/proj/" + rel,
		RelPath:  rel,
		Language: "typescript",
		Size:     int64(len(content)),
		ModTime:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Symbols: []types.Symbol{{
			Name:     "render",
			Kind:     types.KindFunction,
			Start:    types.Position{Line: 3, Column: 1},
			End:      types.Position{Line: 9, Column: 2},
			Exported: true,
			Params:   []string{"view"},
		}},
		Dependencies: []string{"./view", "react"},
		Imports:      map[string][]string{"./view": {"View"}},
		Complexity:   2.5,
		ContentHash:  sha256.Sum256([]byte(content)),
	}
}

func TestOpen(t *testing.T) {
	store := setupTestStore(t)
	assert.Equal(t, ":memory:", store.Path())

	v, err := SchemaVersion(context.Background(), store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "index.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening applies no migrations twice.
	store, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	v, err := SchemaVersion(context.Background(), store.db)
	require.NoError(t, err)
	assert.True(t, v.Equal(semver.MustParse(CurrentSchemaVersion)))
}

func TestSaveAndLookup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	file := sampleFile("src/app.ts", "export function render(view) {}")

	require.NoError(t, store.Save(ctx, "/proj", []*types.IndexedFile{file}))

	got, ok, err := store.Lookup(ctx, "/proj", "src/app.ts", file.ContentHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, file.Symbols, got.Symbols)
	assert.Equal(t, file.Dependencies, got.Dependencies)
	assert.Equal(t, file.Imports, got.Imports)
	assert.Equal(t, file.Complexity, got.Complexity)
	assert.Equal(t, "/proj/src/app.ts", filepath.ToSlash(got.Path))
	assert.True(t, file.ModTime.Equal(got.ModTime))

	t.Run("changed content misses", func(t *testing.T) {
		_, ok, err := store.Lookup(ctx, "/proj", "src/app.ts", sha256.Sum256([]byte("changed")))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other root misses", func(t *testing.T) {
		_, ok, err := store.Lookup(ctx, "/other", "src/app.ts", file.ContentHash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stale extractor version misses", func(t *testing.T) {
		_, err := store.db.ExecContext(ctx, "UPDATE files SET extractor_version = '0.0.1'")
		require.NoError(t, err)
		_, ok, err := store.Lookup(ctx, "/proj", "src/app.ts", file.ContentHash)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSave_ReplacesProjectFiles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := sampleFile("a.ts", "a")
	b := sampleFile("b.ts", "b")
	require.NoError(t, store.Save(ctx, "/proj", []*types.IndexedFile{a, b}))
	require.NoError(t, store.Save(ctx, "/other", []*types.IndexedFile{sampleFile("x.ts", "x")}))

	c := sampleFile("c.ts", "c")
	c.Imports = nil
	require.NoError(t, store.Save(ctx, "/proj", []*types.IndexedFile{b, c}))

	files, err := store.Files(ctx, "/proj")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.ts", files[0].RelPath)
	assert.Equal(t, b.ContentHash, files[0].ContentHash)
	assert.Equal(t, "c.ts", files[1].RelPath)
	assert.Nil(t, files[1].Imports)

	_, ok, err := store.Lookup(ctx, "/proj", "a.ts", a.ContentHash)
	require.NoError(t, err)
	assert.False(t, ok, "files missing from the latest save are dropped")

	info, err := store.Project(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Files)
	assert.False(t, info.LastIndexed.IsZero())

	projects, err := store.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "/other", projects[0].Root)
	assert.Equal(t, "/proj", projects[1].Root)
}

func TestDeleteProject(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "/proj", []*types.IndexedFile{sampleFile("a.ts", "a")}))

	require.NoError(t, store.DeleteProject(ctx, "/proj"))
	_, err := store.Files(ctx, "/proj")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteProject(ctx, "/proj"), ErrNotFound)

	var n int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n))
	assert.Zero(t, n, "files cascade with their project")
}

func TestSave_EmptyAndZeroTimes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	f := sampleFile("a.ts", "a")
	f.ModTime = time.Time{}
	f.Symbols = nil
	require.NoError(t, store.Save(ctx, "/proj", []*types.IndexedFile{f}))

	got, ok, err := store.Lookup(ctx, "/proj", "a.ts", f.ContentHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.ModTime.IsZero())
	assert.Nil(t, got.Symbols)

	require.NoError(t, store.Save(ctx, "/proj", nil))
	files, err := store.Files(ctx, "/proj")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, store.db))
	v, err := SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, store.db))
	v, err = SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, store.db))

	require.NoError(t, ApplyMigrations(ctx, store.db))
	v, err = SchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}
