// Package candidate manages user profiles, candidate records and the profile
// sections a candidate fills in or gets from an extracted CV.
package candidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/validation"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// ChangeRecorder receives every persisted change for cross-region sync.
type ChangeRecorder interface {
	Record(ctx context.Context, entityType, entityID, tableName string, deleted bool)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string, bool) {}

type Service struct {
	repo   *repository.Repository
	rec    ChangeRecorder
	logger *slog.Logger

	Skills         *Section[models.Skill]
	Education      *Section[models.Education]
	Experience     *Section[models.Experience]
	Certifications *Section[models.CertificationLicense]
	Awards         *Section[models.AwardAchievement]
}

func NewService(repo *repository.Repository, rec ChangeRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	s := &Service{repo: repo, rec: rec, logger: logger}
	if sec := repo.Section; sec != nil {
		s.Skills = &Section[models.Skill]{rec: rec, ops: sectionOps[models.Skill]{
			entity: "Skill", table: "skills",
			create: sec.CreateSkill, get: sec.GetSkill, update: sec.UpdateSkill, remove: sec.DeleteSkill, list: sec.ListSkills,
			fields: func(v *models.Skill) (*string, *string, *models.Audit) { return &v.ID, &v.UserProfileID, &v.Audit },
		}}
		s.Education = &Section[models.Education]{rec: rec, ops: sectionOps[models.Education]{
			entity: "Education", table: "educations",
			create: sec.CreateEducation, get: sec.GetEducation, update: sec.UpdateEducation, remove: sec.DeleteEducation, list: sec.ListEducation,
			fields: func(v *models.Education) (*string, *string, *models.Audit) { return &v.ID, &v.UserProfileID, &v.Audit },
		}}
		s.Experience = &Section[models.Experience]{rec: rec, ops: sectionOps[models.Experience]{
			entity: "Experience", table: "experiences",
			create: sec.CreateExperience, get: sec.GetExperience, update: sec.UpdateExperience, remove: sec.DeleteExperience, list: sec.ListExperience,
			fields: func(v *models.Experience) (*string, *string, *models.Audit) { return &v.ID, &v.UserProfileID, &v.Audit },
		}}
		s.Certifications = &Section[models.CertificationLicense]{rec: rec, ops: sectionOps[models.CertificationLicense]{
			entity: "CertificationLicense", table: "certifications_licenses",
			create: sec.CreateCertification, get: sec.GetCertification, update: sec.UpdateCertification, remove: sec.DeleteCertification, list: sec.ListCertifications,
			fields: func(v *models.CertificationLicense) (*string, *string, *models.Audit) {
				return &v.ID, &v.UserProfileID, &v.Audit
			},
		}}
		s.Awards = &Section[models.AwardAchievement]{rec: rec, ops: sectionOps[models.AwardAchievement]{
			entity: "AwardAchievement", table: "awards_achievements",
			create: sec.CreateAward, get: sec.GetAward, update: sec.UpdateAward, remove: sec.DeleteAward, list: sec.ListAwards,
			fields: func(v *models.AwardAchievement) (*string, *string, *models.Audit) {
				return &v.ID, &v.UserProfileID, &v.Audit
			},
		}}
	}
	return s
}

// GetOrCreateProfile returns the user's profile, creating it on first use.
func (s *Service) GetOrCreateProfile(ctx context.Context, userID, name, email string, roles []string) (*models.UserProfile, error) {
	p, err := s.repo.Profile.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p != nil {
		return p, nil
	}

	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	p = &models.UserProfile{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Email:  strings.ToLower(strings.TrimSpace(email)),
		Roles:  roles,
	}
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	if err := s.repo.Profile.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.rec.Record(ctx, "UserProfile", p.ID, "user_profiles", false)
	s.logger.Info("profile created", slog.String("user_id", userID), slog.String("profile_id", p.ID))
	return p, nil
}

// GetProfile returns the profile owned by userID.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := s.repo.Profile.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil || p.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, "profile not found")
	}
	return p, nil
}

func (s *Service) GetProfileByID(ctx context.Context, id string) (*models.UserProfile, error) {
	p, err := s.repo.Profile.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil || p.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, "profile not found")
	}
	return p, nil
}

// UpdateProfile replaces the editable fields of the user's profile. Identity,
// roles and the resume link are kept.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in *models.UserProfile) (*models.UserProfile, error) {
	existing, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := *in
	p.ID, p.UserID, p.Roles = existing.ID, existing.UserID, existing.Roles
	p.Audit = existing.Audit
	if p.ResumeURL == "" {
		p.ResumeURL = existing.ResumeURL
	}
	if err := validation.Struct(&p); err != nil {
		return nil, err
	}
	if err := s.repo.Profile.UpdateProfile(ctx, &p); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.rec.Record(ctx, "UserProfile", p.ID, "user_profiles", false)
	return &p, nil
}

// SetResumeURL points the profile at its latest uploaded CV.
func (s *Service) SetResumeURL(ctx context.Context, profileID, url string) error {
	p, err := s.GetProfileByID(ctx, profileID)
	if err != nil {
		return err
	}
	p.ResumeURL = url
	if err := s.repo.Profile.UpdateProfile(ctx, p); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	s.rec.Record(ctx, "UserProfile", p.ID, "user_profiles", false)
	return nil
}

// DiscardProfile removes a profile created during a registration that failed
// before its candidate record existed.
func (s *Service) DiscardProfile(ctx context.Context, profileID string) error {
	if err := s.repo.Profile.DeleteProfile(ctx, profileID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func newCandidateCode() string {
	return "CAND-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// EnsureCandidate returns the candidate record of a profile, creating it when missing.
func (s *Service) EnsureCandidate(ctx context.Context, profileID string) (*models.Candidate, error) {
	c, err := s.repo.Profile.GetCandidateByProfileID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	if c != nil {
		return c, nil
	}

	c = &models.Candidate{ID: uuid.NewString(), UserProfileID: profileID, CandidateCode: newCandidateCode()}
	if err := s.repo.Profile.CreateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("create candidate: %w", err)
	}
	s.rec.Record(ctx, "Candidate", c.ID, "candidates", false)
	return c, nil
}

// CandidateForUser resolves the candidate record behind an authenticated user.
func (s *Service) CandidateForUser(ctx context.Context, userID string) (*models.Candidate, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Profile.GetCandidateByProfileID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	if c == nil || c.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, "candidate not found")
	}
	return c, nil
}

func (s *Service) SetCandidateCV(ctx context.Context, candidateID string, fileID *string) error {
	if err := s.repo.Profile.UpdateCandidateCV(ctx, candidateID, fileID); err != nil {
		return fmt.Errorf("update candidate cv: %w", err)
	}
	s.rec.Record(ctx, "Candidate", candidateID, "candidates", false)
	return nil
}

// GetFullProfile aggregates a profile with every section.
func (s *Service) GetFullProfile(ctx context.Context, profileID string) (*models.FullProfile, error) {
	p, err := s.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Profile.GetCandidateByProfileID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}

	full := &models.FullProfile{Profile: p, Candidate: c}
	if full.Skills, err = s.Skills.List(ctx, profileID); err != nil {
		return nil, err
	}
	if full.Education, err = s.Education.List(ctx, profileID); err != nil {
		return nil, err
	}
	if full.Experience, err = s.Experience.List(ctx, profileID); err != nil {
		return nil, err
	}
	if full.Certifications, err = s.Certifications.List(ctx, profileID); err != nil {
		return nil, err
	}
	if full.Awards, err = s.Awards.List(ctx, profileID); err != nil {
		return nil, err
	}
	return full, nil
}
