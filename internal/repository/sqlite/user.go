package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/recruiter/pkg/models"
)

const userColumns = `id, email, password_hash, roles, created_at, updated_at`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	t := now()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, joinList(u.Roles), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r *SQLiteRepo) UpdateUserRoles(ctx context.Context, id string, roles []string) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET roles = ?, updated_at = ? WHERE id = ?`, joinList(roles), ms(now()), id)
	return err
}

func (r *SQLiteRepo) DeleteUser(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var roles string
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &roles, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Roles = splitList(roles)
	u.CreatedAt, u.UpdatedAt = fromMs(created), fromMs(updated)
	return &u, nil
}
