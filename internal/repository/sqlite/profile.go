package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/recruiter/pkg/models"
)

const profileColumns = `id, user_id, name, email, phone_number, nationality, profile_picture_url, resume_url,
	job_type_preferences, remote_preferences, roles, age, bio, open_to_relocation, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	t := now()
	p.CreatedAt, p.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO user_profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Email, nullString(p.PhoneNumber), nullString(p.Nationality), nullString(p.ProfilePictureURL),
		nullString(p.ResumeURL), joinList(p.JobTypePreferences), joinList(p.RemotePreferences), joinList(p.Roles),
		nullInt(p.Age), nullString(p.Bio), boolInt(p.OpenToRelocation), boolInt(p.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	return scanProfile(r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = ?`, id))
}

func (r *SQLiteRepo) GetProfileByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	return scanProfile(r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID))
}

func (r *SQLiteRepo) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	p.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE user_profiles SET name = ?, email = ?, phone_number = ?, nationality = ?,
		profile_picture_url = ?, resume_url = ?, job_type_preferences = ?, remote_preferences = ?, roles = ?, age = ?,
		bio = ?, open_to_relocation = ?, is_deleted = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Email, nullString(p.PhoneNumber), nullString(p.Nationality), nullString(p.ProfilePictureURL),
		nullString(p.ResumeURL), joinList(p.JobTypePreferences), joinList(p.RemotePreferences), joinList(p.Roles),
		nullInt(p.Age), nullString(p.Bio), boolInt(p.OpenToRelocation), boolInt(p.IsDeleted), ms(p.UpdatedAt), p.ID)
	return err
}

func scanProfile(row scanner) (*models.UserProfile, error) {
	var p models.UserProfile
	var phone, nationality, picture, resume, bio sql.NullString
	var jobTypes, remote, roles string
	var age sql.NullInt64
	var relocate, deleted int
	var created, updated int64
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &phone, &nationality, &picture, &resume,
		&jobTypes, &remote, &roles, &age, &bio, &relocate, &deleted, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.PhoneNumber, p.Nationality, p.ProfilePictureURL, p.ResumeURL = phone.String, nationality.String, picture.String, resume.String
	p.JobTypePreferences, p.RemotePreferences, p.Roles = splitList(jobTypes), splitList(remote), splitList(roles)
	p.Age = intPtr(age)
	p.Bio = bio.String
	p.OpenToRelocation = relocate != 0
	p.IsDeleted = deleted != 0
	p.CreatedAt, p.UpdatedAt = fromMs(created), fromMs(updated)
	return &p, nil
}

const candidateColumns = `id, user_profile_id, candidate_code, cv_file_id, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if c == nil {
		return fmt.Errorf("candidate is nil")
	}

	t := now()
	c.CreatedAt, c.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO candidates (`+candidateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserProfileID, c.CandidateCode, nullStrPtr(c.CvFileID), boolInt(c.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	return scanCandidate(r.conn.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
}

func (r *SQLiteRepo) GetCandidateByProfileID(ctx context.Context, profileID string) (*models.Candidate, error) {
	return scanCandidate(r.conn.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE user_profile_id = ?`, profileID))
}

func (r *SQLiteRepo) DeleteProfile(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM user_profiles WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) UpdateCandidateCV(ctx context.Context, id string, fileID *string) error {
	_, err := r.conn.Exec(ctx, `UPDATE candidates SET cv_file_id = ?, updated_at = ? WHERE id = ?`, nullStrPtr(fileID), ms(now()), id)
	return err
}

func scanCandidate(row scanner) (*models.Candidate, error) {
	var c models.Candidate
	var cv sql.NullString
	var deleted int
	var created, updated int64
	if err := row.Scan(&c.ID, &c.UserProfileID, &c.CandidateCode, &cv, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.CvFileID = strPtr(cv)
	c.IsDeleted = deleted != 0
	c.CreatedAt, c.UpdatedAt = fromMs(created), fromMs(updated)
	return &c, nil
}
