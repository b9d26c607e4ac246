package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/recruiter/pkg/models"
)

const jobPostColumns = `name, version, max_amount_of_candidates_restriction, minimum_requirements, experience_level,
	job_title, job_type, job_description, industry, intro_text, requirements, what_we_offer, company_info,
	police_report_required, status, origin_country_code, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateJobPost(ctx context.Context, p *models.JobPost) error {
	if p == nil {
		return fmt.Errorf("job post is nil")
	}

	reqs, err := json.Marshal(nonNil(p.MinimumRequirements))
	if err != nil {
		return fmt.Errorf("marshal minimum requirements: %w", err)
	}
	t := now()
	p.CreatedAt, p.UpdatedAt = t, t
	_, err = r.conn.Exec(ctx, `INSERT INTO job_posts (`+jobPostColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Version, p.MaxAmountOfCandidatesRestriction, string(reqs), p.ExperienceLevel,
		p.JobTitle, p.JobType, p.JobDescription, nullString(p.Industry), nullString(p.IntroText), nullString(p.Requirements),
		nullString(p.WhatWeOffer), nullString(p.CompanyInfo), nullBool(p.PoliceReportRequired), p.Status,
		nullStrPtr(p.OriginCountryCode), boolInt(p.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) UpdateJobPost(ctx context.Context, p *models.JobPost) error {
	if p == nil {
		return fmt.Errorf("job post is nil")
	}

	reqs, err := json.Marshal(nonNil(p.MinimumRequirements))
	if err != nil {
		return fmt.Errorf("marshal minimum requirements: %w", err)
	}
	p.UpdatedAt = now()
	_, err = r.conn.Exec(ctx, `UPDATE job_posts SET max_amount_of_candidates_restriction = ?, minimum_requirements = ?,
		experience_level = ?, job_title = ?, job_type = ?, job_description = ?, industry = ?, intro_text = ?,
		requirements = ?, what_we_offer = ?, company_info = ?, police_report_required = ?, status = ?,
		origin_country_code = ?, is_deleted = ?, updated_at = ? WHERE name = ? AND version = ?`,
		p.MaxAmountOfCandidatesRestriction, string(reqs), p.ExperienceLevel, p.JobTitle, p.JobType, p.JobDescription,
		nullString(p.Industry), nullString(p.IntroText), nullString(p.Requirements), nullString(p.WhatWeOffer),
		nullString(p.CompanyInfo), nullBool(p.PoliceReportRequired), p.Status, nullStrPtr(p.OriginCountryCode),
		boolInt(p.IsDeleted), ms(p.UpdatedAt), p.Name, p.Version)
	return err
}

func (r *SQLiteRepo) GetJobPost(ctx context.Context, name string, version int) (*models.JobPost, error) {
	return scanJobPost(r.conn.QueryRow(ctx, `SELECT `+jobPostColumns+` FROM job_posts WHERE name = ? AND version = ?`, name, version))
}

func (r *SQLiteRepo) GetLatestJobPost(ctx context.Context, name string) (*models.JobPost, error) {
	return scanJobPost(r.conn.QueryRow(ctx, `SELECT `+jobPostColumns+` FROM job_posts WHERE name = ? AND is_deleted = 0 ORDER BY version DESC LIMIT 1`, name))
}

func (r *SQLiteRepo) MaxJobPostVersion(ctx context.Context, name string) (int, error) {
	var v sql.NullInt64
	if err := r.conn.QueryRow(ctx, `SELECT MAX(version) FROM job_posts WHERE name = ?`, name).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func (r *SQLiteRepo) ListLatestJobPosts(ctx context.Context, f models.JobPostFilter, p models.Page) ([]models.JobPost, int64, error) {
	where := []string{`p.version = (SELECT MAX(version) FROM job_posts WHERE name = p.name AND is_deleted = 0)`}
	var args []any
	if !f.IncludeDeleted {
		where = append(where, `p.is_deleted = 0`)
	}
	if f.Status != "" {
		where = append(where, `p.status = ?`)
		args = append(args, f.Status)
	}
	if f.OriginCountryCode != "" {
		where = append(where, `p.origin_country_code = ?`)
		args = append(args, strings.ToUpper(f.OriginCountryCode))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		where = append(where, `(p.name LIKE ? OR p.job_title LIKE ? OR p.job_description LIKE ?)`)
		args = append(args, like, like, like)
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM job_posts p WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count job posts: %w", err)
	}

	limit, offset := pageArgs(p.Limit, p.Offset)
	rows, err := r.conn.QueryRows(ctx, `SELECT `+jobPostColumns+` FROM job_posts p WHERE `+clause+` ORDER BY p.updated_at DESC, p.name LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.JobPost{}
	for rows.Next() {
		jp, err := scanJobPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *jp)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepo) ListJobPostVersions(ctx context.Context, name string) ([]models.JobPost, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+jobPostColumns+` FROM job_posts WHERE name = ? ORDER BY version DESC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobPost{}
	for rows.Next() {
		jp, err := scanJobPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *jp)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) SoftDeleteJobPost(ctx context.Context, name string, version int) error {
	_, err := r.conn.Exec(ctx, `UPDATE job_posts SET is_deleted = 1, updated_at = ? WHERE name = ? AND version = ?`, ms(now()), name, version)
	return err
}

func (r *SQLiteRepo) DeleteJobPost(ctx context.Context, name string, version int) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_post_step_assignments WHERE job_post_name = ? AND job_post_version = ?`, name, version); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_posts WHERE name = ? AND version = ?`, name, version); err != nil {
			return fmt.Errorf("delete job post: %w", err)
		}
		return nil
	})
}

func scanJobPost(row scanner) (*models.JobPost, error) {
	var p models.JobPost
	var reqs string
	var industry, intro, requirements, offer, company, country sql.NullString
	var police sql.NullInt64
	var deleted int
	var created, updated int64
	err := row.Scan(&p.Name, &p.Version, &p.MaxAmountOfCandidatesRestriction, &reqs, &p.ExperienceLevel,
		&p.JobTitle, &p.JobType, &p.JobDescription, &industry, &intro, &requirements, &offer, &company,
		&police, &p.Status, &country, &deleted, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(reqs), &p.MinimumRequirements); err != nil {
		p.MinimumRequirements = splitList(reqs)
	}
	if p.MinimumRequirements == nil {
		p.MinimumRequirements = []string{}
	}
	p.Industry, p.IntroText, p.Requirements = industry.String, intro.String, requirements.String
	p.WhatWeOffer, p.CompanyInfo = offer.String, company.String
	p.PoliceReportRequired = boolPtr(police)
	p.OriginCountryCode = strPtr(country)
	p.IsDeleted = deleted != 0
	p.CreatedAt, p.UpdatedAt = fromMs(created), fromMs(updated)
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
