package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

const (
	migrationsDir = "migrations"
	seedDir       = "seed"
)

// seed describes one file under seed/ and the statement that loads it. The
// file content is bound as the only argument.
type seed struct {
	file  string
	query string
}

// Seeds run after every migration pass. The schema is upserted so a new build
// ships its latest extraction schema; the prompt is versioned by users, so only
// the first version is inserted.
var seeds = []seed{
	{
		file: "cv_extraction_v1.json",
		query: `INSERT INTO ai_schemas (version, description, schema_json, created, updated)
			VALUES ('cv_extraction_v1', 'structured CV extraction', ?, strftime('%s','now'), strftime('%s','now'))
			ON CONFLICT(version) DO UPDATE SET schema_json = excluded.schema_json, updated = excluded.updated`,
	},
	{
		file: "prompt_cv_extraction.txt",
		query: `INSERT OR IGNORE INTO prompts (name, version, category, content, locale, tags, created_at, updated_at)
			VALUES ('cv-extraction', 1, 'cv', ?, 'en', 'system,cv',
				CAST(strftime('%s','now') AS INTEGER) * 1000, CAST(strftime('%s','now') AS INTEGER) * 1000)`,
	},
}

// Migrate brings the schema up to date and loads the seed data. Every file
// under migrations/ is applied once, in name order, inside its own
// transaction together with its schema_migrations row. A missing seed file is
// skipped.
func Migrate(ctx context.Context, d *DB, migrationFS, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	pending, err := PendingMigrations(ctx, d, migrationFS)
	if err != nil {
		return err
	}
	for _, version := range pending {
		body, err := fs.ReadFile(migrationFS, path.Join(migrationsDir, version+".sql"))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		err = d.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		d.logger.Info("db: migration applied", slog.String("version", version))
	}

	for _, s := range seeds {
		body, err := fs.ReadFile(seedFS, path.Join(seedDir, s.file))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read seed %s: %w", s.file, err)
		}
		if _, err := d.Exec(ctx, s.query, string(body)); err != nil {
			return fmt.Errorf("seed %s: %w", s.file, err)
		}
	}
	return nil
}

// PendingMigrations lists the migration versions in migrationFS that have not
// been recorded yet, oldest first. The version of a migration is its file name
// without the .sql suffix.
func PendingMigrations(ctx context.Context, d *DB, migrationFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	applied, err := AppliedMigrations(ctx, d)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(path.Ext(name), ".sql") {
			continue
		}
		version := strings.TrimSuffix(name, path.Ext(name))
		if !slices.Contains(applied, version) {
			pending = append(pending, version)
		}
	}
	slices.Sort(pending)
	return pending, nil
}

// AppliedMigrations returns the recorded migration versions in order. A
// database that was never migrated has none.
func AppliedMigrations(ctx context.Context, d *DB) ([]string, error) {
	var exists int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check schema_migrations: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	rows, err := d.QueryRows(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list schema_migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
