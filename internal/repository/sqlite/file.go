package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/recruiter/pkg/models"
)

const fileColumns = `id, owner_user_id, kind, container, folder_path, file_path, extension, content_type, size_bytes, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateFile(ctx context.Context, f *models.File) error {
	if f == nil {
		return fmt.Errorf("file is nil")
	}

	t := now()
	f.CreatedAt, f.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		f.ID, f.OwnerUserID, f.Kind, f.Container, nullString(f.FolderPath), f.FilePath, f.Extension, f.ContentType, f.SizeBytes, ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetFile(ctx context.Context, id string) (*models.File, error) {
	return scanFile(r.conn.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
}

func (r *SQLiteRepo) ListFilesByOwner(ctx context.Context, ownerUserID string) ([]models.File, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+fileColumns+` FROM files WHERE owner_user_id = ? AND is_deleted = 0 ORDER BY created_at DESC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) SoftDeleteFile(ctx context.Context, id string) error {
	return r.softDeleteByID(ctx, "files", id)
}

func scanFile(row scanner) (*models.File, error) {
	var f models.File
	var folder sql.NullString
	var deleted int
	var created, updated int64
	if err := row.Scan(&f.ID, &f.OwnerUserID, &f.Kind, &f.Container, &folder, &f.FilePath, &f.Extension, &f.ContentType, &f.SizeBytes, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	f.FolderPath = folder.String
	f.IsDeleted = deleted != 0
	f.CreatedAt, f.UpdatedAt = fromMs(created), fromMs(updated)
	return &f, nil
}
