package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMigrations_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_notes.sql":   {Data: []byte("SELECT 1;")},
		"m/001_initial.sql": {Data: []byte("SELECT 1;")},
		"m/README.md":       {Data: []byte("docs")},
	}

	migrations, err := findMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_initial", migrations[0].Version)
	assert.Equal(t, "m/001_initial.sql", migrations[0].Path)
	assert.Equal(t, "002_notes", migrations[1].Version)
}

func TestFindMigrations_MissingDir(t *testing.T) {
	_, err := findMigrations(fstest.MapFS{}, "nope")
	assert.Error(t, err)
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "001_initial", normalizeVersion("001_initial.sql"))
	assert.Equal(t, "001_initial", normalizeVersion("001_initial.SQL"))
	assert.Equal(t, "001_initial", normalizeVersion("001_initial"))
}

func TestRunSQLiteMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, DefaultSQLiteConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	defer conn.Close()

	fsys := fstest.MapFS{
		"m/001_things.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"m/002_more.sql":   {Data: []byte("ALTER TABLE things ADD COLUMN name TEXT;")},
	}

	first, err := RunSQLiteMigrations(ctx, conn, fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_things", "002_more"}, first.Applied)

	second, err := RunSQLiteMigrations(ctx, conn, fsys, "m")
	require.NoError(t, err)
	assert.Empty(t, second.Applied)
	assert.Equal(t, []string{"001_things", "002_more"}, second.Skipped)

	_, err = conn.ExecContext(ctx, "INSERT INTO things (id, name) VALUES ('a', 'b')")
	assert.NoError(t, err)
}

func TestRunSQLiteMigrations_EmptyFile(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, DefaultSQLiteConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	defer conn.Close()

	fsys := fstest.MapFS{"m/001_empty.sql": {Data: []byte("   ")}}
	_, err = RunSQLiteMigrations(ctx, conn, fsys, "m")
	assert.Error(t, err)
}

func TestPendingSQLiteMigrations(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, DefaultSQLiteConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	defer conn.Close()

	fsys := fstest.MapFS{"m/001_things.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")}}

	pending, err := PendingSQLiteMigrations(ctx, conn, fsys, "m")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "001_things.sql", pending[0].Name)

	_, err = RunSQLiteMigrations(ctx, conn, fsys, "m")
	require.NoError(t, err)

	pending, err = PendingSQLiteMigrations(ctx, conn, fsys, "m")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunSQLiteMigrations_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, DefaultSQLiteConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	defer conn.Close()

	fsys := fstest.MapFS{
		"m/001_ok.sql":  {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"m/002_bad.sql": {Data: []byte("CREATE TABLE half (id TEXT); NOT SQL;")},
	}

	res, err := RunSQLiteMigrations(ctx, conn, fsys, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 002_bad")
	assert.Equal(t, []string{"001_ok"}, res.Applied)

	pending, err := PendingSQLiteMigrations(ctx, conn, fsys, "m")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "002_bad", pending[0].Version)
}
