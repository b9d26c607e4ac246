// Package jobpost manages versioned job posts, their pipeline steps and the
// assignments that order steps inside a post.
package jobpost

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

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

func recorderOrNop(rec ChangeRecorder) ChangeRecorder {
	if rec == nil {
		return nopRecorder{}
	}
	return rec
}

func versionedID(name string, version int) string {
	return name + ":" + strconv.Itoa(version)
}

// NormalizeOriginCountryCode trims and upper-cases code. Blank input yields nil.
func NormalizeOriginCountryCode(code *string) *string {
	if code == nil {
		return nil
	}
	c := strings.ToUpper(strings.TrimSpace(*code))
	if c == "" {
		return nil
	}
	return &c
}

// Service handles job post versions.
type Service struct {
	repo   *repository.Repository
	rec    ChangeRecorder
	logger *slog.Logger
}

func NewService(repo *repository.Repository, rec ChangeRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, rec: recorderOrNop(rec), logger: logger}
}

func normalizePost(p *models.JobPost) {
	p.Name = strings.TrimSpace(p.Name)
	p.OriginCountryCode = NormalizeOriginCountryCode(p.OriginCountryCode)
	if p.Status == "" {
		p.Status = models.JobPostStatusDraft
	}
}

func samePostContent(a, b *models.JobPost) bool {
	return a.JobTitle == b.JobTitle &&
		a.JobType == b.JobType &&
		a.ExperienceLevel == b.ExperienceLevel &&
		a.MaxAmountOfCandidatesRestriction == b.MaxAmountOfCandidatesRestriction
}

// Create stores p as version 1 of a new post.
func (s *Service) Create(ctx context.Context, p *models.JobPost) (*models.JobPost, error) {
	normalizePost(p)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}

	latest, err := s.repo.JobPost.GetLatestJobPost(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("get latest job post: %w", err)
	}
	if latest != nil && samePostContent(latest, p) {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("a job post named %q with identical content already exists; update it to create a new version", p.Name))
	}
	last, err := s.repo.JobPost.MaxJobPostVersion(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("max job post version: %w", err)
	}
	if last > 0 {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("job post %q already exists", p.Name))
	}

	p.Version = 1
	p.IsDeleted = false
	if err := s.repo.JobPost.CreateJobPost(ctx, p); err != nil {
		return nil, fmt.Errorf("create job post: %w", err)
	}
	s.rec.Record(ctx, "JobPost", versionedID(p.Name, p.Version), "job_posts", false)
	s.logger.Info("job post created", slog.String("name", p.Name))
	return p, nil
}

// Update edits p in place, or stores it as the next version when newVersion is set.
// A new version starts without step assignments.
func (s *Service) Update(ctx context.Context, p *models.JobPost, newVersion bool) (*models.JobPost, error) {
	normalizePost(p)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}

	if newVersion {
		last, err := s.repo.JobPost.MaxJobPostVersion(ctx, p.Name)
		if err != nil {
			return nil, fmt.Errorf("max job post version: %w", err)
		}
		if last == 0 {
			return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("job post %q not found", p.Name))
		}
		p.Version = last + 1
		p.IsDeleted = false
		if err := s.repo.JobPost.CreateJobPost(ctx, p); err != nil {
			return nil, fmt.Errorf("create job post version: %w", err)
		}
		s.rec.Record(ctx, "JobPost", versionedID(p.Name, p.Version), "job_posts", false)
		return p, nil
	}

	existing, err := s.Get(ctx, p.Name, p.Version)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = existing.CreatedAt
	p.IsDeleted = false
	if err := s.repo.JobPost.UpdateJobPost(ctx, p); err != nil {
		return nil, fmt.Errorf("update job post: %w", err)
	}
	s.rec.Record(ctx, "JobPost", versionedID(p.Name, p.Version), "job_posts", false)
	return p, nil
}

// Get returns a live version of a post.
func (s *Service) Get(ctx context.Context, name string, version int) (*models.JobPost, error) {
	p, err := s.repo.JobPost.GetJobPost(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("get job post: %w", err)
	}
	if p == nil || p.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("job post %q version %d not found", name, version))
	}
	return p, nil
}

func (s *Service) GetLatest(ctx context.Context, name string) (*models.JobPost, error) {
	p, err := s.repo.JobPost.GetLatestJobPost(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get latest job post: %w", err)
	}
	if p == nil {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("job post %q not found", name))
	}
	return p, nil
}

// ListLatest returns the newest live version of each post.
func (s *Service) ListLatest(ctx context.Context, f models.JobPostFilter, page models.Page) ([]models.JobPost, int64, error) {
	items, total, err := s.repo.JobPost.ListLatestJobPosts(ctx, f, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list job posts: %w", err)
	}
	return items, total, nil
}

// ListVersions returns every version of name, deleted ones included.
func (s *Service) ListVersions(ctx context.Context, name string) ([]models.JobPost, error) {
	items, err := s.repo.JobPost.ListJobPostVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list job post versions: %w", err)
	}
	if len(items) == 0 {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("job post %q not found", name))
	}
	return items, nil
}

// Delete removes the version and its assignments.
func (s *Service) Delete(ctx context.Context, name string, version int) error {
	if err := s.repo.JobPost.DeleteJobPost(ctx, name, version); err != nil {
		return fmt.Errorf("delete job post: %w", err)
	}
	s.rec.Record(ctx, "JobPost", versionedID(name, version), "job_posts", true)
	return nil
}

func (s *Service) SoftDelete(ctx context.Context, name string, version int) error {
	if err := s.repo.JobPost.SoftDeleteJobPost(ctx, name, version); err != nil {
		return fmt.Errorf("soft delete job post: %w", err)
	}
	s.rec.Record(ctx, "JobPost", versionedID(name, version), "job_posts", true)
	return nil
}
