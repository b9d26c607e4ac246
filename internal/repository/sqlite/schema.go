package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/recruiter/pkg/models"
)

const schemaColumns = `id, version, description, schema_json, created, updated`

// CreateSchema upserts an extraction schema keyed by version and returns its row id.
func (r *SQLiteRepo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	if version == "" {
		return 0, fmt.Errorf("schema version is required")
	}

	ts := time.Now().Unix()
	var id int64
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(version) DO UPDATE SET description = excluded.description, schema_json = excluded.schema_json, updated = excluded.updated`,
			version, nullString(description), schemaJSON, ts, ts); err != nil {
			return err
		}
		// LastInsertId is unreliable on the update path.
		return tx.QueryRowContext(ctx, `SELECT id FROM ai_schemas WHERE version = ?`, version).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert schema %s: %w", version, err)
	}
	return id, nil
}

func (r *SQLiteRepo) GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error) {
	return scanSchema(r.conn.QueryRow(ctx, `SELECT `+schemaColumns+` FROM ai_schemas WHERE version = ?`, version))
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+schemaColumns+` FROM ai_schemas ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Schema{}
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteSchema(ctx context.Context, version string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM ai_schemas WHERE version = ?`, version)
	return err
}

func scanSchema(row scanner) (*models.Schema, error) {
	var s models.Schema
	var desc sql.NullString
	if err := row.Scan(&s.ID, &s.Version, &desc, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Description = desc.String
	return &s, nil
}
