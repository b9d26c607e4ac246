package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/recruiter/pkg/models"
)

const stepColumns = `name, version, step_type, participant, is_interview, show_step_for_candidate, display_title,
	display_content, show_spinner, interview_configuration_name, interview_configuration_version,
	questionnaire_template_name, questionnaire_template_version, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateStep(ctx context.Context, s *models.JobPostStep) error {
	if s == nil {
		return fmt.Errorf("step is nil")
	}

	t := now()
	s.CreatedAt, s.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO job_post_steps (`+stepColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Version, s.StepType, s.Participant, boolInt(s.IsInterview), boolInt(s.ShowStepForCandidate),
		nullString(s.DisplayTitle), nullString(s.DisplayContent), boolInt(s.ShowSpinner),
		nullString(s.InterviewConfigurationName), nullInt(s.InterviewConfigurationVersion),
		nullString(s.QuestionnaireTemplateName), nullInt(s.QuestionnaireTemplateVersion),
		boolInt(s.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) UpdateStep(ctx context.Context, s *models.JobPostStep) error {
	if s == nil {
		return fmt.Errorf("step is nil")
	}

	s.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE job_post_steps SET step_type = ?, participant = ?, is_interview = ?,
		show_step_for_candidate = ?, display_title = ?, display_content = ?, show_spinner = ?,
		interview_configuration_name = ?, interview_configuration_version = ?, questionnaire_template_name = ?,
		questionnaire_template_version = ?, is_deleted = ?, updated_at = ? WHERE name = ? AND version = ?`,
		s.StepType, s.Participant, boolInt(s.IsInterview), boolInt(s.ShowStepForCandidate),
		nullString(s.DisplayTitle), nullString(s.DisplayContent), boolInt(s.ShowSpinner),
		nullString(s.InterviewConfigurationName), nullInt(s.InterviewConfigurationVersion),
		nullString(s.QuestionnaireTemplateName), nullInt(s.QuestionnaireTemplateVersion),
		boolInt(s.IsDeleted), ms(s.UpdatedAt), s.Name, s.Version)
	return err
}

func (r *SQLiteRepo) GetStep(ctx context.Context, name string, version int) (*models.JobPostStep, error) {
	return scanStep(r.conn.QueryRow(ctx, `SELECT `+stepColumns+` FROM job_post_steps WHERE name = ? AND version = ?`, name, version))
}

func (r *SQLiteRepo) GetLatestStep(ctx context.Context, name string) (*models.JobPostStep, error) {
	return scanStep(r.conn.QueryRow(ctx, `SELECT `+stepColumns+` FROM job_post_steps WHERE name = ? AND is_deleted = 0 ORDER BY version DESC LIMIT 1`, name))
}

func (r *SQLiteRepo) MaxStepVersion(ctx context.Context, name string) (int, error) {
	var v sql.NullInt64
	if err := r.conn.QueryRow(ctx, `SELECT MAX(version) FROM job_post_steps WHERE name = ?`, name).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func (r *SQLiteRepo) ListLatestSteps(ctx context.Context, search string, p models.Page) ([]models.JobPostStep, int64, error) {
	clause := `s.is_deleted = 0 AND s.version = (SELECT MAX(version) FROM job_post_steps WHERE name = s.name AND is_deleted = 0)`
	var args []any
	if q := strings.TrimSpace(search); q != "" {
		clause += ` AND (s.name LIKE ? OR s.display_title LIKE ? OR s.step_type LIKE ?)`
		like := "%" + q + "%"
		args = append(args, like, like, like)
	}

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM job_post_steps s WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count steps: %w", err)
	}

	limit, offset := pageArgs(p.Limit, p.Offset)
	rows, err := r.conn.QueryRows(ctx, `SELECT `+stepColumns+` FROM job_post_steps s WHERE `+clause+` ORDER BY s.name LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.JobPostStep{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepo) ListStepVersions(ctx context.Context, name string) ([]models.JobPostStep, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+stepColumns+` FROM job_post_steps WHERE name = ? ORDER BY version DESC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobPostStep{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) SetStepDeleted(ctx context.Context, name string, version int, deleted bool) error {
	_, err := r.conn.Exec(ctx, `UPDATE job_post_steps SET is_deleted = ?, updated_at = ? WHERE name = ? AND version = ?`, boolInt(deleted), ms(now()), name, version)
	return err
}

func (r *SQLiteRepo) DeleteStep(ctx context.Context, name string, version int) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM job_post_steps WHERE name = ? AND version = ?`, name, version)
	return err
}

func scanStep(row scanner) (*models.JobPostStep, error) {
	var s models.JobPostStep
	var isInterview, showForCandidate, showSpinner, deleted int
	var title, content, cfgName, tplName sql.NullString
	var cfgVersion, tplVersion sql.NullInt64
	var created, updated int64
	err := row.Scan(&s.Name, &s.Version, &s.StepType, &s.Participant, &isInterview, &showForCandidate, &title,
		&content, &showSpinner, &cfgName, &cfgVersion, &tplName, &tplVersion, &deleted, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	s.IsInterview = isInterview != 0
	s.ShowStepForCandidate = showForCandidate != 0
	s.ShowSpinner = showSpinner != 0
	s.DisplayTitle, s.DisplayContent = title.String, content.String
	s.InterviewConfigurationName, s.InterviewConfigurationVersion = cfgName.String, intPtr(cfgVersion)
	s.QuestionnaireTemplateName, s.QuestionnaireTemplateVersion = tplName.String, intPtr(tplVersion)
	s.IsDeleted = deleted != 0
	s.CreatedAt, s.UpdatedAt = fromMs(created), fromMs(updated)
	return &s, nil
}
