package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/recruiter/pkg/models"
)

const applicationColumns = `id, job_post_name, job_post_version, candidate_id, status, started_at, completed_at, is_deleted, created_at, updated_at`

const applicationStepColumns = `id, job_application_id, job_post_step_name, job_post_step_version, step_number, status,
	started_at, completed_at, data, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateApplication(ctx context.Context, a *models.JobApplication) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	t := now()
	a.CreatedAt, a.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO job_applications (`+applicationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.JobPostName, a.JobPostVersion, a.CandidateID, a.Status, nullTime(a.StartedAt), nullTime(a.CompletedAt),
		boolInt(a.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetApplication(ctx context.Context, id string) (*models.JobApplication, error) {
	return scanApplication(r.conn.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = ?`, id))
}

func (r *SQLiteRepo) FindApplication(ctx context.Context, candidateID, postName string, postVersion int) (*models.JobApplication, error) {
	return scanApplication(r.conn.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications
		WHERE candidate_id = ? AND job_post_name = ? AND job_post_version = ?`, candidateID, postName, postVersion))
}

func (r *SQLiteRepo) UpdateApplicationStatus(ctx context.Context, id, status string, completedAt *time.Time) error {
	res, err := r.conn.Exec(ctx, `UPDATE job_applications SET status = ?, completed_at = COALESCE(?, completed_at), updated_at = ? WHERE id = ?`,
		status, nullTime(completedAt), ms(now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteRepo) ListApplicationsByJobPost(ctx context.Context, postName string, postVersion int) ([]models.JobApplication, error) {
	return r.listApplications(ctx, `WHERE job_post_name = ? AND job_post_version = ? AND is_deleted = 0 ORDER BY created_at`, postName, postVersion)
}

func (r *SQLiteRepo) ListApplicationsByCandidate(ctx context.Context, candidateID string) ([]models.JobApplication, error) {
	return r.listApplications(ctx, `WHERE candidate_id = ? AND is_deleted = 0 ORDER BY created_at DESC`, candidateID)
}

func (r *SQLiteRepo) listApplications(ctx context.Context, clause string, args ...any) ([]models.JobApplication, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+applicationColumns+` FROM job_applications `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) CountApplicationsByJobPost(ctx context.Context, postName string, postVersion int) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM job_applications WHERE job_post_name = ? AND job_post_version = ?`, postName, postVersion).Scan(&n)
	return n, err
}

func (r *SQLiteRepo) CreateApplicationStep(ctx context.Context, s *models.JobApplicationStep) error {
	if s == nil {
		return fmt.Errorf("application step is nil")
	}

	t := now()
	s.CreatedAt, s.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO job_application_steps (`+applicationStepColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.JobApplicationID, s.JobPostStepName, s.JobPostStepVersion, s.StepNumber, s.Status,
		nullTime(s.StartedAt), nullTime(s.CompletedAt), rawOrNull(s.Data), boolInt(s.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetApplicationStep(ctx context.Context, id string) (*models.JobApplicationStep, error) {
	return scanApplicationStep(r.conn.QueryRow(ctx, `SELECT `+applicationStepColumns+` FROM job_application_steps WHERE id = ?`, id))
}

func (r *SQLiteRepo) FindApplicationStep(ctx context.Context, applicationID string, stepNumber int) (*models.JobApplicationStep, error) {
	return scanApplicationStep(r.conn.QueryRow(ctx, `SELECT `+applicationStepColumns+` FROM job_application_steps
		WHERE job_application_id = ? AND step_number = ?`, applicationID, stepNumber))
}

func (r *SQLiteRepo) UpdateApplicationStep(ctx context.Context, s *models.JobApplicationStep) error {
	if s == nil {
		return fmt.Errorf("application step is nil")
	}

	s.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE job_application_steps SET job_post_step_name = ?, job_post_step_version = ?, status = ?,
		started_at = ?, completed_at = ?, data = ?, is_deleted = ?, updated_at = ? WHERE id = ?`,
		s.JobPostStepName, s.JobPostStepVersion, s.Status, nullTime(s.StartedAt), nullTime(s.CompletedAt),
		rawOrNull(s.Data), boolInt(s.IsDeleted), ms(s.UpdatedAt), s.ID)
	return err
}

func (r *SQLiteRepo) ListApplicationSteps(ctx context.Context, applicationID string) ([]models.JobApplicationStep, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+applicationStepColumns+` FROM job_application_steps
		WHERE job_application_id = ? AND is_deleted = 0 ORDER BY step_number`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobApplicationStep{}
	for rows.Next() {
		s, err := scanApplicationStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) CountApplicationStepsForStep(ctx context.Context, stepName string, stepVersion int) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM job_application_steps WHERE job_post_step_name = ? AND job_post_step_version = ?`, stepName, stepVersion).Scan(&n)
	return n, err
}

func scanApplication(row scanner) (*models.JobApplication, error) {
	var a models.JobApplication
	var started, completed sql.NullInt64
	var deleted int
	var created, updated int64
	if err := row.Scan(&a.ID, &a.JobPostName, &a.JobPostVersion, &a.CandidateID, &a.Status, &started, &completed, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.StartedAt, a.CompletedAt = timePtr(started), timePtr(completed)
	a.IsDeleted = deleted != 0
	a.CreatedAt, a.UpdatedAt = fromMs(created), fromMs(updated)
	return &a, nil
}

func scanApplicationStep(row scanner) (*models.JobApplicationStep, error) {
	var s models.JobApplicationStep
	var started, completed sql.NullInt64
	var data sql.NullString
	var deleted int
	var created, updated int64
	err := row.Scan(&s.ID, &s.JobApplicationID, &s.JobPostStepName, &s.JobPostStepVersion, &s.StepNumber, &s.Status,
		&started, &completed, &data, &deleted, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.StartedAt, s.CompletedAt = timePtr(started), timePtr(completed)
	if data.Valid && data.String != "" {
		s.Data = json.RawMessage(data.String)
	}
	s.IsDeleted = deleted != 0
	s.CreatedAt, s.UpdatedAt = fromMs(created), fromMs(updated)
	return &s, nil
}

func rawOrNull(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
