package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one .sql file. Files apply in Version order, so name them
// with a numeric prefix such as 001_.
type Migration struct {
	Version string
	Name    string
	Path    string
}

// MigrationResult lists versions applied by a run and versions already present.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// migrationTarget hides the driver. Each migration runs in its own
// transaction together with the row that records it.
type migrationTarget interface {
	ensureTable(ctx context.Context) error
	appliedVersions(ctx context.Context) (map[string]bool, error)
	apply(ctx context.Context, version, body string) error
}

// RunMigrations applies the pending migrations under dir to postgres.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) (*MigrationResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return migrate(ctx, pgTarget{pool}, fsys, dir)
}

// RunSQLiteMigrations applies the pending migrations under dir to sqlite.
func RunSQLiteMigrations(ctx context.Context, conn *sql.DB, fsys fs.FS, dir string) (*MigrationResult, error) {
	if conn == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return migrate(ctx, sqliteTarget{conn}, fsys, dir)
}

// GetPendingMigrations lists postgres migrations not yet applied.
func GetPendingMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) ([]Migration, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return pending(ctx, pgTarget{pool}, fsys, dir)
}

// PendingSQLiteMigrations lists sqlite migrations not yet applied.
func PendingSQLiteMigrations(ctx context.Context, conn *sql.DB, fsys fs.FS, dir string) ([]Migration, error) {
	if conn == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return pending(ctx, sqliteTarget{conn}, fsys, dir)
}

func migrate(ctx context.Context, t migrationTarget, fsys fs.FS, dir string) (*MigrationResult, error) {
	all, applied, err := load(ctx, t, fsys, dir)
	if err != nil {
		return nil, err
	}

	res := &MigrationResult{}
	for _, m := range all {
		if applied[m.Version] {
			res.Skipped = append(res.Skipped, m.Version)
			continue
		}
		body, err := readMigration(fsys, m)
		if err != nil {
			return res, err
		}
		if err := t.apply(ctx, m.Version, body); err != nil {
			return res, fmt.Errorf("migration %s: %w", m.Version, err)
		}
		res.Applied = append(res.Applied, m.Version)
	}
	return res, nil
}

func pending(ctx context.Context, t migrationTarget, fsys fs.FS, dir string) ([]Migration, error) {
	all, applied, err := load(ctx, t, fsys, dir)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(m Migration) bool { return applied[m.Version] }), nil
}

func load(ctx context.Context, t migrationTarget, fsys fs.FS, dir string) ([]Migration, map[string]bool, error) {
	if err := t.ensureTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("creating schema_migrations: %w", err)
	}
	all, err := findMigrations(fsys, dir)
	if err != nil {
		return nil, nil, err
	}
	applied, err := t.appliedVersions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	return all, applied, nil
}

// findMigrations lists the .sql files directly under dir, ordered by version.
func findMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations in %s: %w", dir, err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ".sql") {
			continue
		}
		out = append(out, Migration{
			Version: normalizeVersion(e.Name()),
			Name:    e.Name(),
			Path:    path.Join(dir, e.Name()),
		})
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// normalizeVersion strips a .sql extension in any case.
func normalizeVersion(name string) string {
	if strings.EqualFold(path.Ext(name), ".sql") {
		return name[:len(name)-len(".sql")]
	}
	return name
}

func readMigration(fsys fs.FS, m Migration) (string, error) {
	b, err := fs.ReadFile(fsys, m.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", m.Name, err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("migration file %s is empty", m.Name)
	}
	return string(b), nil
}

type pgTarget struct{ pool *pgxpool.Pool }

func (t pgTarget) ensureTable(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT NOW()
	)`)
	return err
}

func (t pgTarget) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := t.pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[normalizeVersion(v)] = true
	}
	return applied, nil
}

func (t pgTarget) apply(ctx context.Context, version, body string) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, body); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
		return err
	})
}

type sqliteTarget struct{ conn *sql.DB }

func (t sqliteTarget) ensureTable(ctx context.Context) error {
	_, err := t.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (t sqliteTarget) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := t.conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[normalizeVersion(v)] = true
	}
	return applied, rows.Err()
}

func (t sqliteTarget) apply(ctx context.Context, version, body string) error {
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
