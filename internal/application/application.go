// Package application tracks a candidate's path through a job post: the
// application itself, one row per step the candidate reached and the
// interview bound to an interview step.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/catalog"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// ChangeRecorder receives every persisted change for cross-region sync.
type ChangeRecorder interface {
	Record(ctx context.Context, entityType, entityID, tableName string, deleted bool)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string, bool) {}

var validStatuses = map[string]bool{
	models.ApplicationStatusInProgress: true,
	models.ApplicationStatusCompleted:  true,
	models.ApplicationStatusRejected:   true,
	models.ApplicationStatusWithdrawn:  true,
}

type Service struct {
	repo    *repository.Repository
	catalog *catalog.Service
	rec     ChangeRecorder
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo *repository.Repository, cat *catalog.Service, rec ChangeRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{repo: repo, catalog: cat, rec: rec, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrGet returns the candidate's application to the post, creating it on
// the first call. Only published posts accept new applications.
func (s *Service) CreateOrGet(ctx context.Context, candidateID, postName string, postVersion int) (*models.JobApplication, bool, error) {
	if candidateID == "" {
		return nil, false, apperr.E(apperr.ErrInvalid, "candidate id is required")
	}
	existing, err := s.repo.Application.FindApplication(ctx, candidateID, postName, postVersion)
	if err != nil {
		return nil, false, fmt.Errorf("find application: %w", err)
	}
	if existing != nil {
		if existing.IsDeleted {
			return nil, false, errRemoved(postName)
		}
		return existing, false, nil
	}

	post, err := s.repo.JobPost.GetJobPost(ctx, postName, postVersion)
	if err != nil {
		return nil, false, fmt.Errorf("get job post: %w", err)
	}
	if post == nil || post.IsDeleted {
		return nil, false, apperr.E(apperr.ErrNotFound, fmt.Sprintf("job post %q version %d not found", postName, postVersion))
	}
	if post.Status != models.JobPostStatusPublished {
		return nil, false, apperr.E(apperr.ErrUnavailable, fmt.Sprintf("job post %q is not available", postName))
	}
	if limit := post.MaxAmountOfCandidatesRestriction; limit > 0 {
		n, err := s.repo.Application.CountApplicationsByJobPost(ctx, postName, postVersion)
		if err != nil {
			return nil, false, fmt.Errorf("count applications: %w", err)
		}
		if n >= int64(limit) {
			return nil, false, apperr.E(apperr.ErrConflict, "job post has reached its maximum number of candidates")
		}
	}

	started := s.now()
	app := &models.JobApplication{
		ID:             uuid.NewString(),
		JobPostName:    postName,
		JobPostVersion: postVersion,
		CandidateID:    candidateID,
		Status:         models.ApplicationStatusInProgress,
		StartedAt:      &started,
	}
	if err := s.repo.Application.CreateApplication(ctx, app); err != nil {
		// lost a race on the unique (candidate, post) key
		if again, ferr := s.repo.Application.FindApplication(ctx, candidateID, postName, postVersion); ferr == nil && again != nil {
			if again.IsDeleted {
				return nil, false, errRemoved(postName)
			}
			return again, false, nil
		}
		return nil, false, fmt.Errorf("create application: %w", err)
	}
	s.rec.Record(ctx, "JobApplication", app.ID, "job_applications", false)
	s.logger.Info("application created",
		slog.String("application_id", app.ID),
		slog.String("job_post", postName),
		slog.Int("version", postVersion))
	return app, true, nil
}

// errRemoved reports a removed application still holding the candidate's
// single slot on a post.
func errRemoved(postName string) error {
	return apperr.E(apperr.ErrConflict, fmt.Sprintf("application to job post %q was removed", postName))
}

func (s *Service) Get(ctx context.Context, id string) (*models.JobApplication, error) {
	app, err := s.repo.Application.GetApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if app == nil || app.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("application %s not found", id))
	}
	return app, nil
}

// GetForCandidate is Get restricted to the application's owner.
func (s *Service) GetForCandidate(ctx context.Context, id, candidateID string) (*models.JobApplication, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.CandidateID != candidateID {
		return nil, apperr.E(apperr.ErrForbidden, "application belongs to another candidate")
	}
	return app, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*models.JobApplication, error) {
	if !validStatuses[status] {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("invalid application status %q", status))
	}
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if status == models.ApplicationStatusCompleted {
		t := s.now()
		completedAt = &t
		app.CompletedAt = completedAt
	}
	if err := s.repo.Application.UpdateApplicationStatus(ctx, id, status, completedAt); err != nil {
		return nil, fmt.Errorf("update application status: %w", err)
	}
	app.Status = status
	s.rec.Record(ctx, "JobApplication", id, "job_applications", false)
	return app, nil
}

// resolveStepVersion pins a step reference to a concrete live version. A nil
// or non-positive version means the newest one.
func (s *Service) resolveStepVersion(ctx context.Context, name string, version *int) (*models.JobPostStep, error) {
	var step *models.JobPostStep
	var err error
	if version == nil || *version < 1 {
		step, err = s.repo.Step.GetLatestStep(ctx, name)
	} else {
		step, err = s.repo.Step.GetStep(ctx, name, *version)
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	if step == nil || step.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q not found", name))
	}
	return step, nil
}

// PromoteToNextStep completes the step the application is at so the candidate
// moves on to the next one.
func (s *Service) PromoteToNextStep(ctx context.Context, appID, postName string, postVersion, currentStepNumber int) (*models.JobApplicationStep, error) {
	app, err := s.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.JobPostName != postName || app.JobPostVersion != postVersion {
		return nil, apperr.E(apperr.ErrInvalid, "application does not belong to this job post")
	}

	assignments, err := s.repo.Assignment.ListAssignmentsByJobPost(ctx, postName, postVersion)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, apperr.E(apperr.ErrInvalid, "job post has no steps")
	}
	var current *models.JobPostStepAssignment
	for i := range assignments {
		if assignments[i].StepNumber == currentStepNumber {
			current = &assignments[i]
			break
		}
	}
	if current == nil {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("job post has no step number %d", currentStepNumber))
	}
	step, err := s.resolveStepVersion(ctx, current.StepName, current.StepVersion)
	if err != nil {
		return nil, err
	}

	now := s.now()
	as, err := s.repo.Application.FindApplicationStep(ctx, appID, currentStepNumber)
	if err != nil {
		return nil, fmt.Errorf("find application step: %w", err)
	}
	if as == nil {
		as = &models.JobApplicationStep{
			ID:                 uuid.NewString(),
			JobApplicationID:   appID,
			JobPostStepName:    step.Name,
			JobPostStepVersion: step.Version,
			StepNumber:         currentStepNumber,
			Status:             models.StepStatusCompleted,
			StartedAt:          &now,
			CompletedAt:        &now,
		}
		if err := s.repo.Application.CreateApplicationStep(ctx, as); err != nil {
			return nil, fmt.Errorf("create application step: %w", err)
		}
	} else {
		as.Status = models.StepStatusCompleted
		as.IsDeleted = false
		if as.StartedAt == nil {
			as.StartedAt = &now
		}
		if as.CompletedAt == nil {
			as.CompletedAt = &now
		}
		if err := s.repo.Application.UpdateApplicationStep(ctx, as); err != nil {
			return nil, fmt.Errorf("update application step: %w", err)
		}
	}
	s.rec.Record(ctx, "JobApplicationStep", as.ID, "job_application_steps", false)
	s.logger.Info("application promoted",
		slog.String("application_id", appID),
		slog.Int("step_number", currentStepNumber))

	if err := s.completeIfFinished(ctx, app, assignments); err != nil {
		return nil, err
	}
	return as, nil
}

// BeginResult is what a candidate gets back when starting a step.
type BeginResult struct {
	Step      *models.JobApplicationStep `json:"step"`
	Interview *models.Interview          `json:"interview,omitempty"`
}

// BeginStep marks a step InProgress, creating its row on first use. Calling it
// again is harmless. Interview steps also get their Interview row.
func (s *Service) BeginStep(ctx context.Context, appID, stepName string, stepVersion *int, stepNumber int) (*BeginResult, error) {
	if stepName == "" {
		return nil, apperr.E(apperr.ErrInvalid, "step name is required")
	}
	if stepNumber < 1 {
		return nil, apperr.E(apperr.ErrInvalid, "step number must be at least 1")
	}
	app, err := s.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.Status == models.ApplicationStatusRejected || app.Status == models.ApplicationStatusWithdrawn {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("application is %s", app.Status))
	}
	step, err := s.resolveStepVersion(ctx, stepName, stepVersion)
	if err != nil {
		return nil, err
	}

	now := s.now()
	as, err := s.repo.Application.FindApplicationStep(ctx, appID, stepNumber)
	if err != nil {
		return nil, fmt.Errorf("find application step: %w", err)
	}
	if as == nil {
		as = &models.JobApplicationStep{
			ID:                 uuid.NewString(),
			JobApplicationID:   appID,
			JobPostStepName:    step.Name,
			JobPostStepVersion: step.Version,
			StepNumber:         stepNumber,
			Status:             models.StepStatusInProgress,
			StartedAt:          &now,
		}
		if err := s.repo.Application.CreateApplicationStep(ctx, as); err != nil {
			return nil, fmt.Errorf("create application step: %w", err)
		}
	} else {
		// a completed step stays completed
		if as.Status != models.StepStatusCompleted {
			as.Status = models.StepStatusInProgress
		}
		if as.StartedAt == nil {
			as.StartedAt = &now
		}
		as.IsDeleted = false
		if err := s.repo.Application.UpdateApplicationStep(ctx, as); err != nil {
			return nil, fmt.Errorf("update application step: %w", err)
		}
	}
	s.rec.Record(ctx, "JobApplicationStep", as.ID, "job_application_steps", false)

	res := &BeginResult{Step: as}
	if step.IsInterview {
		if res.Interview, err = s.EnsureInterview(ctx, as, step); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// EnsureInterview returns the interview bound to an application step, creating
// it with the configuration's prompts pinned to concrete versions.
func (s *Service) EnsureInterview(ctx context.Context, as *models.JobApplicationStep, step *models.JobPostStep) (*models.Interview, error) {
	existing, err := s.repo.Interview.GetInterviewByApplicationStep(ctx, as.ID)
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	if step.InterviewConfigurationName == "" {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("step %q has no interview configuration", step.Name))
	}

	cfg, err := s.catalog.GetInterviewConfiguration(ctx, step.InterviewConfigurationName, step.InterviewConfigurationVersion)
	if err != nil {
		return nil, err
	}
	prompts, err := s.catalog.ResolvePrompts(ctx, cfg)
	if err != nil {
		return nil, err
	}

	started := s.now()
	iv := &models.Interview{
		ID:                            uuid.NewString(),
		JobApplicationStepID:          as.ID,
		InterviewConfigurationName:    cfg.Name,
		InterviewConfigurationVersion: cfg.Version,
		InstructionPromptName:         prompts.Instruction.Name,
		InstructionPromptVersion:      prompts.Instruction.Version,
		PersonalityPromptName:         prompts.Personality.Name,
		PersonalityPromptVersion:      prompts.Personality.Version,
		QuestionsPromptName:           prompts.Questions.Name,
		QuestionsPromptVersion:        prompts.Questions.Version,
		StartedAt:                     &started,
	}
	if err := s.repo.Interview.CreateInterview(ctx, iv); err != nil {
		return nil, fmt.Errorf("create interview: %w", err)
	}
	s.rec.Record(ctx, "Interview", iv.ID, "interviews", false)
	s.logger.Info("interview created",
		slog.String("interview_id", iv.ID),
		slog.String("application_step_id", as.ID),
		slog.String("configuration", cfg.Name))
	return iv, nil
}

// CompleteStep stores the candidate's answers for a step and marks it done.
// The application completes once every assigned step is done.
func (s *Service) CompleteStep(ctx context.Context, appID string, stepNumber int, data json.RawMessage) (*models.JobApplicationStep, error) {
	if len(data) > 0 && !json.Valid(data) {
		return nil, apperr.E(apperr.ErrInvalid, "step data must be valid JSON")
	}
	app, err := s.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	as, err := s.repo.Application.FindApplicationStep(ctx, appID, stepNumber)
	if err != nil {
		return nil, fmt.Errorf("find application step: %w", err)
	}
	if as == nil || as.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %d has not been started", stepNumber))
	}

	now := s.now()
	as.Status = models.StepStatusCompleted
	as.CompletedAt = &now
	if len(data) > 0 {
		as.Data = data
	}
	if err := s.repo.Application.UpdateApplicationStep(ctx, as); err != nil {
		return nil, fmt.Errorf("update application step: %w", err)
	}
	s.rec.Record(ctx, "JobApplicationStep", as.ID, "job_application_steps", false)

	assignments, err := s.repo.Assignment.ListAssignmentsByJobPost(ctx, app.JobPostName, app.JobPostVersion)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if err := s.completeIfFinished(ctx, app, assignments); err != nil {
		return nil, err
	}
	return as, nil
}

func (s *Service) completeIfFinished(ctx context.Context, app *models.JobApplication, assignments []models.JobPostStepAssignment) error {
	if len(assignments) == 0 || app.Status != models.ApplicationStatusInProgress {
		return nil
	}
	steps, err := s.repo.Application.ListApplicationSteps(ctx, app.ID)
	if err != nil {
		return fmt.Errorf("list application steps: %w", err)
	}
	done := make(map[int]bool, len(steps))
	for _, st := range steps {
		if st.Status == models.StepStatusCompleted {
			done[st.StepNumber] = true
		}
	}
	for _, a := range assignments {
		if !done[a.StepNumber] {
			return nil
		}
	}
	_, err = s.UpdateStatus(ctx, app.ID, models.ApplicationStatusCompleted)
	return err
}

// Progress is a candidate's view of one application.
type Progress struct {
	Application *models.JobApplication      `json:"application"`
	Steps       []models.JobApplicationStep `json:"steps"`
}

// GetMyProgress returns an empty progress when the candidate has not applied.
func (s *Service) GetMyProgress(ctx context.Context, candidateID, postName string, postVersion int) (*Progress, error) {
	app, err := s.repo.Application.FindApplication(ctx, candidateID, postName, postVersion)
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}
	if app == nil || app.IsDeleted {
		return &Progress{Steps: []models.JobApplicationStep{}}, nil
	}
	steps, err := s.repo.Application.ListApplicationSteps(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list application steps: %w", err)
	}
	return &Progress{Application: app, Steps: steps}, nil
}

// PipelineEntry is one row of the recruiter's view of a job post.
type PipelineEntry struct {
	models.JobApplication
	CurrentStep    *models.JobApplicationStep `json:"current_step,omitempty"`
	CompletedSteps int                        `json:"completed_steps"`
}

// ListByJobPost returns every application to the post with the step each
// candidate is working on: the first unfinished one, or the last one reached.
func (s *Service) ListByJobPost(ctx context.Context, postName string, postVersion int) ([]PipelineEntry, error) {
	apps, err := s.repo.Application.ListApplicationsByJobPost(ctx, postName, postVersion)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	out := make([]PipelineEntry, 0, len(apps))
	for _, app := range apps {
		steps, err := s.repo.Application.ListApplicationSteps(ctx, app.ID)
		if err != nil {
			return nil, fmt.Errorf("list application steps: %w", err)
		}
		e := PipelineEntry{JobApplication: app}
		for i := range steps {
			if steps[i].Status == models.StepStatusCompleted {
				e.CompletedSteps++
			} else if e.CurrentStep == nil {
				e.CurrentStep = &steps[i]
			}
		}
		if e.CurrentStep == nil && len(steps) > 0 {
			e.CurrentStep = &steps[len(steps)-1]
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) ListByCandidate(ctx context.Context, candidateID string) ([]models.JobApplication, error) {
	apps, err := s.repo.Application.ListApplicationsByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// GetStep returns one application step row.
func (s *Service) GetStep(ctx context.Context, appID string, stepNumber int) (*models.JobApplicationStep, error) {
	as, err := s.repo.Application.FindApplicationStep(ctx, appID, stepNumber)
	if err != nil {
		return nil, fmt.Errorf("find application step: %w", err)
	}
	if as == nil || as.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %d not found", stepNumber))
	}
	return as, nil
}
