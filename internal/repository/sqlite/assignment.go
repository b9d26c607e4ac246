package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/recruiter/pkg/models"
)

const assignmentColumns = `id, job_post_name, job_post_version, step_name, step_version, step_number, status, created_at, updated_at`

func (r *SQLiteRepo) CreateAssignment(ctx context.Context, a *models.JobPostStepAssignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}

	t := now()
	a.CreatedAt, a.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO job_post_step_assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.JobPostName, a.JobPostVersion, a.StepName, nullInt(a.StepVersion), a.StepNumber, a.Status, ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetAssignment(ctx context.Context, id string) (*models.JobPostStepAssignment, error) {
	return scanAssignment(r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM job_post_step_assignments WHERE id = ?`, id))
}

func (r *SQLiteRepo) FindAssignment(ctx context.Context, postName string, postVersion int, stepName string, stepVersion *int) (*models.JobPostStepAssignment, error) {
	if stepVersion == nil {
		return scanAssignment(r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM job_post_step_assignments
			WHERE job_post_name = ? AND job_post_version = ? AND step_name = ? AND step_version IS NULL LIMIT 1`,
			postName, postVersion, stepName))
	}
	return scanAssignment(r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM job_post_step_assignments
		WHERE job_post_name = ? AND job_post_version = ? AND step_name = ? AND step_version = ? LIMIT 1`,
		postName, postVersion, stepName, *stepVersion))
}

func (r *SQLiteRepo) ListAssignmentsByJobPost(ctx context.Context, postName string, postVersion int) ([]models.JobPostStepAssignment, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+assignmentColumns+` FROM job_post_step_assignments
		WHERE job_post_name = ? AND job_post_version = ? ORDER BY step_number, created_at`, postName, postVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobPostStepAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateAssignmentStatus(ctx context.Context, id, status string) error {
	res, err := r.conn.Exec(ctx, `UPDATE job_post_step_assignments SET status = ?, updated_at = ? WHERE id = ?`, status, ms(now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteRepo) DeleteAssignment(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM job_post_step_assignments WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) CountAssignmentsForStep(ctx context.Context, stepName string, stepVersion *int) (int64, error) {
	var n int64
	var err error
	if stepVersion == nil {
		err = r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM job_post_step_assignments WHERE step_name = ? AND step_version IS NULL`, stepName).Scan(&n)
	} else {
		err = r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM job_post_step_assignments WHERE step_name = ? AND step_version = ?`, stepName, *stepVersion).Scan(&n)
	}
	return n, err
}

func scanAssignment(row scanner) (*models.JobPostStepAssignment, error) {
	var a models.JobPostStepAssignment
	var stepVersion sql.NullInt64
	var created, updated int64
	if err := row.Scan(&a.ID, &a.JobPostName, &a.JobPostVersion, &a.StepName, &stepVersion, &a.StepNumber, &a.Status, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.StepVersion = intPtr(stepVersion)
	a.CreatedAt, a.UpdatedAt = fromMs(created), fromMs(updated)
	return &a, nil
}
