package jobpost

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// AssignmentService places steps inside job posts.
type AssignmentService struct {
	repo   *repository.Repository
	rec    ChangeRecorder
	logger *slog.Logger
}

func NewAssignmentService(repo *repository.Repository, rec ChangeRecorder, logger *slog.Logger) *AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentService{repo: repo, rec: recorderOrNop(rec), logger: logger}
}

func versionLabel(v *int) string {
	if v == nil {
		return "latest version"
	}
	return "version " + strconv.Itoa(*v)
}

// Assign adds stepName to the post at stepNumber. A nil stepVersion tracks the
// newest live version of the step.
func (s *AssignmentService) Assign(ctx context.Context, postName string, postVersion int, stepName string, stepVersion *int, stepNumber int, status string) (*models.AssignmentWithStep, error) {
	stepName = strings.TrimSpace(stepName)
	if stepName == "" {
		return nil, apperr.E(apperr.ErrInvalid, "step name is required")
	}
	if stepNumber < 1 {
		return nil, apperr.E(apperr.ErrInvalid, "step number must be at least 1")
	}
	if status == "" {
		status = models.AssignmentStatusPending
	}

	post, err := s.repo.JobPost.GetJobPost(ctx, postName, postVersion)
	if err != nil {
		return nil, fmt.Errorf("get job post: %w", err)
	}
	if post == nil {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("job post %q version %d not found", postName, postVersion))
	}

	if stepVersion != nil {
		step, err := s.repo.Step.GetStep(ctx, stepName, *stepVersion)
		if err != nil {
			return nil, fmt.Errorf("get step: %w", err)
		}
		if step == nil {
			return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q version %d not found", stepName, *stepVersion))
		}
	} else {
		last, err := s.repo.Step.MaxStepVersion(ctx, stepName)
		if err != nil {
			return nil, fmt.Errorf("max step version: %w", err)
		}
		if last == 0 {
			return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q not found", stepName))
		}
	}

	dup, err := s.repo.Assignment.FindAssignment(ctx, postName, postVersion, stepName, stepVersion)
	if err != nil {
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	if dup != nil {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("step %q %s is already assigned to job post %q version %d",
			stepName, versionLabel(stepVersion), postName, postVersion))
	}

	a := models.JobPostStepAssignment{
		ID:             uuid.NewString(),
		JobPostName:    postName,
		JobPostVersion: postVersion,
		StepName:       stepName,
		StepVersion:    stepVersion,
		StepNumber:     stepNumber,
		Status:         status,
	}
	if err := s.repo.Assignment.CreateAssignment(ctx, &a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	s.rec.Record(ctx, "JobPostStepAssignment", a.ID, "job_post_step_assignments", false)

	step, err := s.resolveStep(ctx, stepName, stepVersion)
	if err != nil {
		return nil, err
	}
	return &models.AssignmentWithStep{JobPostStepAssignment: a, Step: step}, nil
}

// Unassign removes the assignment if it exists.
func (s *AssignmentService) Unassign(ctx context.Context, postName string, postVersion int, stepName string, stepVersion *int) error {
	a, err := s.repo.Assignment.FindAssignment(ctx, postName, postVersion, stepName, stepVersion)
	if err != nil {
		return fmt.Errorf("find assignment: %w", err)
	}
	if a == nil {
		return nil
	}
	if err := s.repo.Assignment.DeleteAssignment(ctx, a.ID); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	s.rec.Record(ctx, "JobPostStepAssignment", a.ID, "job_post_step_assignments", true)
	return nil
}

func (s *AssignmentService) UpdateStatus(ctx context.Context, id, status string) error {
	if strings.TrimSpace(status) == "" {
		return apperr.E(apperr.ErrInvalid, "status is required")
	}
	a, err := s.repo.Assignment.GetAssignment(ctx, id)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return apperr.E(apperr.ErrNotFound, fmt.Sprintf("assignment %s not found", id))
	}
	if err := s.repo.Assignment.UpdateAssignmentStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	s.rec.Record(ctx, "JobPostStepAssignment", id, "job_post_step_assignments", false)
	return nil
}

// ListByJobPost returns the post's assignments ordered by step number, each
// with its resolved step definition.
func (s *AssignmentService) ListByJobPost(ctx context.Context, postName string, postVersion int) ([]models.AssignmentWithStep, error) {
	list, err := s.repo.Assignment.ListAssignmentsByJobPost(ctx, postName, postVersion)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	type key struct {
		name    string
		version int // 0 for latest
	}
	cache := map[key]*models.JobPostStep{}
	out := make([]models.AssignmentWithStep, 0, len(list))
	for _, a := range list {
		k := key{name: a.StepName}
		if a.StepVersion != nil {
			k.version = *a.StepVersion
		}
		step, ok := cache[k]
		if !ok {
			step, err = s.resolveStep(ctx, a.StepName, a.StepVersion)
			if err != nil {
				return nil, err
			}
			cache[k] = step
		}
		out = append(out, models.AssignmentWithStep{JobPostStepAssignment: a, Step: step})
	}
	return out, nil
}

func (s *AssignmentService) resolveStep(ctx context.Context, name string, version *int) (*models.JobPostStep, error) {
	var step *models.JobPostStep
	var err error
	if version == nil {
		step, err = s.repo.Step.GetLatestStep(ctx, name)
	} else {
		step, err = s.repo.Step.GetStep(ctx, name, *version)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve step %s: %w", name, err)
	}
	return step, nil
}
