package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/recruiter/pkg/models"
)

func (r *SQLiteRepo) softDeleteByID(ctx context.Context, table, id string) error {
	_, err := r.conn.Exec(ctx, `UPDATE `+table+` SET is_deleted = 1, updated_at = ? WHERE id = ?`, ms(now()), id)
	return err
}

// Skills

const skillColumns = `id, user_profile_id, category, skill_name, proficiency, years_experience, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateSkill(ctx context.Context, s *models.Skill) error {
	if s == nil {
		return fmt.Errorf("skill is nil")
	}
	t := now()
	s.CreatedAt, s.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO skills (`+skillColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		s.ID, s.UserProfileID, nullString(s.Category), s.SkillName, nullString(s.Proficiency), nullInt(s.YearsExperience), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetSkill(ctx context.Context, id string) (*models.Skill, error) {
	return scanSkill(r.conn.QueryRow(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = ?`, id))
}

func (r *SQLiteRepo) UpdateSkill(ctx context.Context, s *models.Skill) error {
	if s == nil {
		return fmt.Errorf("skill is nil")
	}
	s.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE skills SET category = ?, skill_name = ?, proficiency = ?, years_experience = ?, updated_at = ? WHERE id = ?`,
		nullString(s.Category), s.SkillName, nullString(s.Proficiency), nullInt(s.YearsExperience), ms(s.UpdatedAt), s.ID)
	return err
}

func (r *SQLiteRepo) DeleteSkill(ctx context.Context, id string) error {
	return r.softDeleteByID(ctx, "skills", id)
}

func (r *SQLiteRepo) ListSkills(ctx context.Context, profileID string) ([]models.Skill, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+skillColumns+` FROM skills WHERE user_profile_id = ? AND is_deleted = 0 ORDER BY created_at`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Skill{}
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSkill(row scanner) (*models.Skill, error) {
	var s models.Skill
	var category, proficiency sql.NullString
	var years sql.NullInt64
	var deleted int
	var created, updated int64
	if err := row.Scan(&s.ID, &s.UserProfileID, &category, &s.SkillName, &proficiency, &years, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Category, s.Proficiency = category.String, proficiency.String
	s.YearsExperience = intPtr(years)
	s.IsDeleted = deleted != 0
	s.CreatedAt, s.UpdatedAt = fromMs(created), fromMs(updated)
	return &s, nil
}

// Education

const educationColumns = `id, user_profile_id, degree, institution, field_of_study, location, start_date, end_date, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateEducation(ctx context.Context, e *models.Education) error {
	if e == nil {
		return fmt.Errorf("education is nil")
	}
	t := now()
	e.CreatedAt, e.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO educations (`+educationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		e.ID, e.UserProfileID, nullString(e.Degree), nullString(e.Institution), nullString(e.FieldOfStudy),
		nullString(e.Location), nullStrPtr(e.StartDate), nullStrPtr(e.EndDate), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetEducation(ctx context.Context, id string) (*models.Education, error) {
	return scanEducation(r.conn.QueryRow(ctx, `SELECT `+educationColumns+` FROM educations WHERE id = ?`, id))
}

func (r *SQLiteRepo) UpdateEducation(ctx context.Context, e *models.Education) error {
	if e == nil {
		return fmt.Errorf("education is nil")
	}
	e.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE educations SET degree = ?, institution = ?, field_of_study = ?, location = ?,
		start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`,
		nullString(e.Degree), nullString(e.Institution), nullString(e.FieldOfStudy), nullString(e.Location),
		nullStrPtr(e.StartDate), nullStrPtr(e.EndDate), ms(e.UpdatedAt), e.ID)
	return err
}

func (r *SQLiteRepo) DeleteEducation(ctx context.Context, id string) error {
	return r.softDeleteByID(ctx, "educations", id)
}

func (r *SQLiteRepo) ListEducation(ctx context.Context, profileID string) ([]models.Education, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+educationColumns+` FROM educations WHERE user_profile_id = ? AND is_deleted = 0 ORDER BY start_date DESC, created_at`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Education{}
	for rows.Next() {
		e, err := scanEducation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEducation(row scanner) (*models.Education, error) {
	var e models.Education
	var degree, institution, field, location, start, end sql.NullString
	var deleted int
	var created, updated int64
	if err := row.Scan(&e.ID, &e.UserProfileID, &degree, &institution, &field, &location, &start, &end, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Degree, e.Institution, e.FieldOfStudy, e.Location = degree.String, institution.String, field.String, location.String
	e.StartDate, e.EndDate = strPtr(start), strPtr(end)
	e.IsDeleted = deleted != 0
	e.CreatedAt, e.UpdatedAt = fromMs(created), fromMs(updated)
	return &e, nil
}

// Experience

const experienceColumns = `id, user_profile_id, title, organization, industry, location, start_date, end_date, description, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateExperience(ctx context.Context, e *models.Experience) error {
	if e == nil {
		return fmt.Errorf("experience is nil")
	}
	t := now()
	e.CreatedAt, e.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO experiences (`+experienceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		e.ID, e.UserProfileID, nullString(e.Title), nullString(e.Organization), nullString(e.Industry),
		nullString(e.Location), nullStrPtr(e.StartDate), nullStrPtr(e.EndDate), nullString(e.Description), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetExperience(ctx context.Context, id string) (*models.Experience, error) {
	return scanExperience(r.conn.QueryRow(ctx, `SELECT `+experienceColumns+` FROM experiences WHERE id = ?`, id))
}

func (r *SQLiteRepo) UpdateExperience(ctx context.Context, e *models.Experience) error {
	if e == nil {
		return fmt.Errorf("experience is nil")
	}
	e.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE experiences SET title = ?, organization = ?, industry = ?, location = ?,
		start_date = ?, end_date = ?, description = ?, updated_at = ? WHERE id = ?`,
		nullString(e.Title), nullString(e.Organization), nullString(e.Industry), nullString(e.Location),
		nullStrPtr(e.StartDate), nullStrPtr(e.EndDate), nullString(e.Description), ms(e.UpdatedAt), e.ID)
	return err
}

func (r *SQLiteRepo) DeleteExperience(ctx context.Context, id string) error {
	return r.softDeleteByID(ctx, "experiences", id)
}

func (r *SQLiteRepo) ListExperience(ctx context.Context, profileID string) ([]models.Experience, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+experienceColumns+` FROM experiences WHERE user_profile_id = ? AND is_deleted = 0 ORDER BY start_date DESC, created_at`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Experience{}
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanExperience(row scanner) (*models.Experience, error) {
	var e models.Experience
	var title, org, industry, location, start, end, desc sql.NullString
	var deleted int
	var created, updated int64
	if err := row.Scan(&e.ID, &e.UserProfileID, &title, &org, &industry, &location, &start, &end, &desc, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Title, e.Organization, e.Industry, e.Location = title.String, org.String, industry.String, location.String
	e.StartDate, e.EndDate = strPtr(start), strPtr(end)
	e.Description = desc.String
	e.IsDeleted = deleted != 0
	e.CreatedAt, e.UpdatedAt = fromMs(created), fromMs(updated)
	return &e, nil
}

// Certifications and licenses

const certificationColumns = `id, user_profile_id, name, issuer, date_issued, valid_until, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateCertification(ctx context.Context, c *models.CertificationLicense) error {
	if c == nil {
		return fmt.Errorf("certification is nil")
	}
	t := now()
	c.CreatedAt, c.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO certifications_licenses (`+certificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		c.ID, c.UserProfileID, c.Name, nullString(c.Issuer), nullStrPtr(c.DateIssued), nullStrPtr(c.ValidUntil), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetCertification(ctx context.Context, id string) (*models.CertificationLicense, error) {
	return scanCertification(r.conn.QueryRow(ctx, `SELECT `+certificationColumns+` FROM certifications_licenses WHERE id = ?`, id))
}

func (r *SQLiteRepo) UpdateCertification(ctx context.Context, c *models.CertificationLicense) error {
	if c == nil {
		return fmt.Errorf("certification is nil")
	}
	c.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE certifications_licenses SET name = ?, issuer = ?, date_issued = ?, valid_until = ?, updated_at = ? WHERE id = ?`,
		c.Name, nullString(c.Issuer), nullStrPtr(c.DateIssued), nullStrPtr(c.ValidUntil), ms(c.UpdatedAt), c.ID)
	return err
}

func (r *SQLiteRepo) DeleteCertification(ctx context.Context, id string) error {
	return r.softDeleteByID(ctx, "certifications_licenses", id)
}

func (r *SQLiteRepo) ListCertifications(ctx context.Context, profileID string) ([]models.CertificationLicense, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+certificationColumns+` FROM certifications_licenses WHERE user_profile_id = ? AND is_deleted = 0 ORDER BY created_at`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CertificationLicense{}
	for rows.Next() {
		c, err := scanCertification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCertification(row scanner) (*models.CertificationLicense, error) {
	var c models.CertificationLicense
	var issuer, issued, valid sql.NullString
	var deleted int
	var created, updated int64
	if err := row.Scan(&c.ID, &c.UserProfileID, &c.Name, &issuer, &issued, &valid, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Issuer = issuer.String
	c.DateIssued, c.ValidUntil = strPtr(issued), strPtr(valid)
	c.IsDeleted = deleted != 0
	c.CreatedAt, c.UpdatedAt = fromMs(created), fromMs(updated)
	return &c, nil
}

// Awards and achievements

const awardColumns = `id, user_profile_id, title, issuer, year, description, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateAward(ctx context.Context, a *models.AwardAchievement) error {
	if a == nil {
		return fmt.Errorf("award is nil")
	}
	t := now()
	a.CreatedAt, a.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO awards_achievements (`+awardColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		a.ID, a.UserProfileID, a.Title, nullString(a.Issuer), nullInt(a.Year), nullString(a.Description), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetAward(ctx context.Context, id string) (*models.AwardAchievement, error) {
	return scanAward(r.conn.QueryRow(ctx, `SELECT `+awardColumns+` FROM awards_achievements WHERE id = ?`, id))
}

func (r *SQLiteRepo) UpdateAward(ctx context.Context, a *models.AwardAchievement) error {
	if a == nil {
		return fmt.Errorf("award is nil")
	}
	a.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE awards_achievements SET title = ?, issuer = ?, year = ?, description = ?, updated_at = ? WHERE id = ?`,
		a.Title, nullString(a.Issuer), nullInt(a.Year), nullString(a.Description), ms(a.UpdatedAt), a.ID)
	return err
}

func (r *SQLiteRepo) DeleteAward(ctx context.Context, id string) error {
	return r.softDeleteByID(ctx, "awards_achievements", id)
}

func (r *SQLiteRepo) ListAwards(ctx context.Context, profileID string) ([]models.AwardAchievement, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+awardColumns+` FROM awards_achievements WHERE user_profile_id = ? AND is_deleted = 0 ORDER BY year DESC, created_at`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AwardAchievement{}
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAward(row scanner) (*models.AwardAchievement, error) {
	var a models.AwardAchievement
	var issuer, desc sql.NullString
	var year sql.NullInt64
	var deleted int
	var created, updated int64
	if err := row.Scan(&a.ID, &a.UserProfileID, &a.Title, &issuer, &year, &desc, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Issuer, a.Description = issuer.String, desc.String
	a.Year = intPtr(year)
	a.IsDeleted = deleted != 0
	a.CreatedAt, a.UpdatedAt = fromMs(created), fromMs(updated)
	return &a, nil
}
