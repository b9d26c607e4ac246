package jobpost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/validation"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

var stepTypes = map[string]bool{
	models.StepTypeInterview:      true,
	models.StepTypeQuestionnaire:  true,
	models.StepTypeDocumentUpload: true,
	models.StepTypeInformation:    true,
	models.StepTypeOther:          true,
}

// StepService handles versioned pipeline steps.
type StepService struct {
	repo   *repository.Repository
	rec    ChangeRecorder
	logger *slog.Logger
}

func NewStepService(repo *repository.Repository, rec ChangeRecorder, logger *slog.Logger) *StepService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepService{repo: repo, rec: recorderOrNop(rec), logger: logger}
}

// NormalizeStep applies the step invariants: legacy type names, the derived
// interview flag and the candidate visibility rules.
func NormalizeStep(s *models.JobPostStep) {
	s.Name = strings.TrimSpace(s.Name)
	switch strings.ToLower(strings.ReplaceAll(s.StepType, " ", "")) {
	case "multiplechoice", "assessment", "questionnaire":
		s.StepType = models.StepTypeQuestionnaire
	}

	s.IsInterview = s.Participant == models.ParticipantCandidate && s.StepType == models.StepTypeInterview
	if s.Participant == models.ParticipantCandidate {
		s.ShowStepForCandidate = true
		s.ShowSpinner = false
	}
	if !s.IsInterview {
		s.InterviewConfigurationName = ""
		s.InterviewConfigurationVersion = nil
	}
	if s.StepType != models.StepTypeQuestionnaire {
		s.QuestionnaireTemplateName = ""
		s.QuestionnaireTemplateVersion = nil
	}
	if !s.ShowStepForCandidate {
		s.DisplayTitle = ""
		s.DisplayContent = ""
		s.ShowSpinner = false
	}
}

func sameStepContent(a, b *models.JobPostStep) bool {
	return a.IsInterview == b.IsInterview &&
		a.StepType == b.StepType &&
		a.Participant == b.Participant &&
		a.ShowStepForCandidate == b.ShowStepForCandidate &&
		a.DisplayTitle == b.DisplayTitle &&
		a.DisplayContent == b.DisplayContent &&
		a.ShowSpinner == b.ShowSpinner &&
		a.InterviewConfigurationName == b.InterviewConfigurationName &&
		equalIntPtr(a.InterviewConfigurationVersion, b.InterviewConfigurationVersion) &&
		a.QuestionnaireTemplateName == b.QuestionnaireTemplateName &&
		equalIntPtr(a.QuestionnaireTemplateVersion, b.QuestionnaireTemplateVersion)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *StepService) validate(ctx context.Context, step *models.JobPostStep) error {
	NormalizeStep(step)
	if err := validation.Struct(step); err != nil {
		return err
	}
	if !stepTypes[step.StepType] {
		return apperr.E(apperr.ErrInvalid, fmt.Sprintf("unknown step type %q", step.StepType))
	}

	if step.IsInterview {
		if step.InterviewConfigurationName == "" {
			return apperr.E(apperr.ErrInvalid, "interview steps require an interview configuration")
		}
		var cfg *models.InterviewConfiguration
		var err error
		if v := step.InterviewConfigurationVersion; v != nil {
			cfg, err = s.repo.InterviewConfiguration.GetInterviewConfiguration(ctx, step.InterviewConfigurationName, *v)
		} else {
			cfg, err = s.repo.InterviewConfiguration.GetLatestInterviewConfiguration(ctx, step.InterviewConfigurationName)
		}
		if err != nil {
			return fmt.Errorf("get interview configuration: %w", err)
		}
		if cfg == nil || cfg.IsDeleted {
			return apperr.E(apperr.ErrInvalid, fmt.Sprintf("interview configuration %q not found", step.InterviewConfigurationName))
		}
	}

	if step.StepType == models.StepTypeQuestionnaire {
		if step.QuestionnaireTemplateName == "" {
			return apperr.E(apperr.ErrInvalid, "questionnaire steps require a questionnaire template")
		}
		var tpl *models.QuestionnaireTemplate
		var err error
		if v := step.QuestionnaireTemplateVersion; v != nil {
			tpl, err = s.repo.QuestionnaireTemplate.GetQuestionnaireTemplate(ctx, step.QuestionnaireTemplateName, *v)
		} else {
			tpl, err = s.repo.QuestionnaireTemplate.GetLatestQuestionnaireTemplate(ctx, step.QuestionnaireTemplateName)
		}
		if err != nil {
			return fmt.Errorf("get questionnaire template: %w", err)
		}
		if tpl == nil || tpl.IsDeleted {
			return apperr.E(apperr.ErrInvalid, fmt.Sprintf("questionnaire template %q not found", step.QuestionnaireTemplateName))
		}
	}
	return nil
}

// Create stores step as version 1.
func (s *StepService) Create(ctx context.Context, step *models.JobPostStep) (*models.JobPostStep, error) {
	if err := s.validate(ctx, step); err != nil {
		return nil, err
	}

	latest, err := s.repo.Step.GetLatestStep(ctx, step.Name)
	if err != nil {
		return nil, fmt.Errorf("get latest step: %w", err)
	}
	if latest != nil && sameStepContent(latest, step) {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("a step named %q with identical content already exists; update it to create a new version", step.Name))
	}
	last, err := s.repo.Step.MaxStepVersion(ctx, step.Name)
	if err != nil {
		return nil, fmt.Errorf("max step version: %w", err)
	}
	if last > 0 {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("step %q already exists", step.Name))
	}

	step.Version = 1
	step.IsDeleted = false
	if err := s.repo.Step.CreateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("create step: %w", err)
	}
	s.rec.Record(ctx, "JobPostStep", versionedID(step.Name, step.Version), "job_post_steps", false)
	return step, nil
}

// Update edits step in place unless it is in use, or stores it as the next
// version when newVersion is set.
func (s *StepService) Update(ctx context.Context, step *models.JobPostStep, newVersion bool) (*models.JobPostStep, error) {
	if err := s.validate(ctx, step); err != nil {
		return nil, err
	}

	if newVersion {
		last, err := s.repo.Step.MaxStepVersion(ctx, step.Name)
		if err != nil {
			return nil, fmt.Errorf("max step version: %w", err)
		}
		if last == 0 {
			return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q not found", step.Name))
		}
		step.Version = last + 1
		step.IsDeleted = false
		if err := s.repo.Step.CreateStep(ctx, step); err != nil {
			return nil, fmt.Errorf("create step version: %w", err)
		}
		s.rec.Record(ctx, "JobPostStep", versionedID(step.Name, step.Version), "job_post_steps", false)
		return step, nil
	}

	existing, err := s.Get(ctx, step.Name, step.Version)
	if err != nil {
		return nil, err
	}
	inUse, err := s.InUse(ctx, step.Name, step.Version)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, apperr.E(apperr.ErrConflict, "step is in use; create a new version to make changes")
	}

	step.CreatedAt = existing.CreatedAt
	step.IsDeleted = false
	if err := s.repo.Step.UpdateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("update step: %w", err)
	}
	s.rec.Record(ctx, "JobPostStep", versionedID(step.Name, step.Version), "job_post_steps", false)
	return step, nil
}

// InUse reports whether an assignment or an application step depends on the version.
// Dynamic-latest assignments only pin the newest live version.
func (s *StepService) InUse(ctx context.Context, name string, version int) (bool, error) {
	n, err := s.repo.Assignment.CountAssignmentsForStep(ctx, name, &version)
	if err != nil {
		return false, fmt.Errorf("count assignments: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	latest, err := s.repo.Step.GetLatestStep(ctx, name)
	if err != nil {
		return false, fmt.Errorf("get latest step: %w", err)
	}
	if latest != nil && latest.Version == version {
		n, err = s.repo.Assignment.CountAssignmentsForStep(ctx, name, nil)
		if err != nil {
			return false, fmt.Errorf("count dynamic assignments: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}

	n, err = s.repo.Application.CountApplicationStepsForStep(ctx, name, version)
	if err != nil {
		return false, fmt.Errorf("count application steps: %w", err)
	}
	return n > 0, nil
}

// Delete soft-deletes a version that is in use and removes it otherwise.
func (s *StepService) Delete(ctx context.Context, name string, version int) (soft bool, err error) {
	step, err := s.repo.Step.GetStep(ctx, name, version)
	if err != nil {
		return false, fmt.Errorf("get step: %w", err)
	}
	if step == nil {
		return false, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q version %d not found", name, version))
	}

	inUse, err := s.InUse(ctx, name, version)
	if err != nil {
		return false, err
	}
	if inUse {
		err = s.repo.Step.SetStepDeleted(ctx, name, version, true)
	} else {
		err = s.repo.Step.DeleteStep(ctx, name, version)
	}
	if err != nil {
		return false, fmt.Errorf("delete step: %w", err)
	}
	s.rec.Record(ctx, "JobPostStep", versionedID(name, version), "job_post_steps", true)
	s.logger.Info("step deleted", slog.String("name", name), slog.Int("version", version), slog.Bool("soft", inUse))
	return inUse, nil
}

func (s *StepService) Restore(ctx context.Context, name string, version int) error {
	step, err := s.repo.Step.GetStep(ctx, name, version)
	if err != nil {
		return fmt.Errorf("get step: %w", err)
	}
	if step == nil {
		return apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q version %d not found", name, version))
	}
	if !step.IsDeleted {
		return nil
	}
	if err := s.repo.Step.SetStepDeleted(ctx, name, version, false); err != nil {
		return fmt.Errorf("restore step: %w", err)
	}
	s.rec.Record(ctx, "JobPostStep", versionedID(name, version), "job_post_steps", false)
	return nil
}

// Duplicate copies a step version under newName as version 1.
func (s *StepService) Duplicate(ctx context.Context, name string, version int, newName, newDisplayTitle string) (*models.JobPostStep, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, apperr.E(apperr.ErrInvalid, "new step name is required")
	}
	src, err := s.Get(ctx, name, version)
	if err != nil {
		return nil, err
	}
	last, err := s.repo.Step.MaxStepVersion(ctx, newName)
	if err != nil {
		return nil, fmt.Errorf("max step version: %w", err)
	}
	if last > 0 {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("step %q already exists", newName))
	}

	cp := *src
	cp.Name = newName
	if newDisplayTitle != "" {
		cp.DisplayTitle = newDisplayTitle
	}
	return s.Create(ctx, &cp)
}

func (s *StepService) Get(ctx context.Context, name string, version int) (*models.JobPostStep, error) {
	step, err := s.repo.Step.GetStep(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	if step == nil || step.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q version %d not found", name, version))
	}
	return step, nil
}

func (s *StepService) GetLatest(ctx context.Context, name string) (*models.JobPostStep, error) {
	step, err := s.repo.Step.GetLatestStep(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get latest step: %w", err)
	}
	if step == nil {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q not found", name))
	}
	return step, nil
}

func (s *StepService) ListLatest(ctx context.Context, search string, page models.Page) ([]models.JobPostStep, int64, error) {
	items, total, err := s.repo.Step.ListLatestSteps(ctx, search, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list steps: %w", err)
	}
	return items, total, nil
}

func (s *StepService) ListVersions(ctx context.Context, name string) ([]models.JobPostStep, error) {
	items, err := s.repo.Step.ListStepVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list step versions: %w", err)
	}
	if len(items) == 0 {
		return nil, apperr.E(apperr.ErrNotFound, fmt.Sprintf("step %q not found", name))
	}
	return items, nil
}
