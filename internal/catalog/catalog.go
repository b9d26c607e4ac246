// Package catalog manages the versioned building blocks of interviews and
// questionnaires: prompts, interview configurations and questionnaire templates.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
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

type Service struct {
	repo   *repository.Repository
	rec    ChangeRecorder
	logger *slog.Logger
}

func NewService(repo *repository.Repository, rec ChangeRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, rec: rec, logger: logger}
}

func (s *Service) record(ctx context.Context, entityType, name string, version int, table string, deleted bool) {
	if s.rec != nil {
		s.rec.Record(ctx, entityType, name+":"+strconv.Itoa(version), table, deleted)
	}
}

func notFound(what, name string, version *int) error {
	if version == nil {
		return apperr.E(apperr.ErrNotFound, fmt.Sprintf("%s %q not found", what, name))
	}
	return apperr.E(apperr.ErrNotFound, fmt.Sprintf("%s %q version %d not found", what, name, *version))
}

// Prompts

// CreatePrompt stores p as version 1, or as the next version when the name exists.
func (s *Service) CreatePrompt(ctx context.Context, p *models.Prompt) (*models.Prompt, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	last, err := s.repo.Prompt.MaxPromptVersion(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("max prompt version: %w", err)
	}
	p.Version = last + 1
	p.IsDeleted = false
	if err := s.repo.Prompt.CreatePrompt(ctx, p); err != nil {
		return nil, fmt.Errorf("create prompt: %w", err)
	}
	s.record(ctx, "Prompt", p.Name, p.Version, "prompts", false)
	return p, nil
}

// GetPrompt returns a specific version, or the latest when version is nil.
func (s *Service) GetPrompt(ctx context.Context, name string, version *int) (*models.Prompt, error) {
	var p *models.Prompt
	var err error
	if version != nil {
		p, err = s.repo.Prompt.GetPrompt(ctx, name, *version)
	} else {
		p, err = s.repo.Prompt.GetLatestPrompt(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	if p == nil || p.IsDeleted {
		return nil, notFound("prompt", name, version)
	}
	return p, nil
}

func (s *Service) ListPrompts(ctx context.Context, category string, page models.Page) ([]models.Prompt, int64, error) {
	items, total, err := s.repo.Prompt.ListLatestPrompts(ctx, category, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	return items, total, nil
}

func (s *Service) DeletePrompt(ctx context.Context, name string, version int) error {
	if _, err := s.GetPrompt(ctx, name, &version); err != nil {
		return err
	}
	if err := s.repo.Prompt.SoftDeletePrompt(ctx, name, version); err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	s.record(ctx, "Prompt", name, version, "prompts", true)
	return nil
}

// Interview configurations

// CreateInterviewConfiguration stores c after checking that every referenced prompt exists.
func (s *Service) CreateInterviewConfiguration(ctx context.Context, c *models.InterviewConfiguration) (*models.InterviewConfiguration, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := validation.Struct(c); err != nil {
		return nil, err
	}
	if _, err := s.ResolvePrompts(ctx, c); err != nil {
		return nil, err
	}

	last, err := s.repo.InterviewConfiguration.MaxInterviewConfigurationVersion(ctx, c.Name)
	if err != nil {
		return nil, fmt.Errorf("max interview configuration version: %w", err)
	}
	c.Version = last + 1
	c.IsDeleted = false
	if err := s.repo.InterviewConfiguration.CreateInterviewConfiguration(ctx, c); err != nil {
		return nil, fmt.Errorf("create interview configuration: %w", err)
	}
	s.record(ctx, "InterviewConfiguration", c.Name, c.Version, "interview_configurations", false)
	return c, nil
}

func (s *Service) GetInterviewConfiguration(ctx context.Context, name string, version *int) (*models.InterviewConfiguration, error) {
	var c *models.InterviewConfiguration
	var err error
	if version != nil {
		c, err = s.repo.InterviewConfiguration.GetInterviewConfiguration(ctx, name, *version)
	} else {
		c, err = s.repo.InterviewConfiguration.GetLatestInterviewConfiguration(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get interview configuration: %w", err)
	}
	if c == nil || c.IsDeleted {
		return nil, notFound("interview configuration", name, version)
	}
	return c, nil
}

func (s *Service) ListInterviewConfigurations(ctx context.Context, page models.Page) ([]models.InterviewConfiguration, int64, error) {
	items, total, err := s.repo.InterviewConfiguration.ListLatestInterviewConfigurations(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list interview configurations: %w", err)
	}
	return items, total, nil
}

func (s *Service) DeleteInterviewConfiguration(ctx context.Context, name string, version int) error {
	if _, err := s.GetInterviewConfiguration(ctx, name, &version); err != nil {
		return err
	}
	if err := s.repo.InterviewConfiguration.SoftDeleteInterviewConfiguration(ctx, name, version); err != nil {
		return fmt.Errorf("delete interview configuration: %w", err)
	}
	s.record(ctx, "InterviewConfiguration", name, version, "interview_configurations", true)
	return nil
}

// ResolvedPrompts are the concrete prompt versions an interview runs with.
type ResolvedPrompts struct {
	Instruction *models.Prompt `json:"instruction"`
	Personality *models.Prompt `json:"personality"`
	Questions   *models.Prompt `json:"questions"`
}

// ResolvePrompts pins each prompt of c to a concrete version. A nil version
// resolves to the newest live prompt.
func (s *Service) ResolvePrompts(ctx context.Context, c *models.InterviewConfiguration) (*ResolvedPrompts, error) {
	resolve := func(kind, name string, version *int) (*models.Prompt, error) {
		if strings.TrimSpace(name) == "" {
			return nil, apperr.E(apperr.ErrInvalid, kind+" prompt name is required")
		}
		if version != nil && *version <= 0 {
			return nil, apperr.E(apperr.ErrInvalid, kind+" prompt version must be greater than 0")
		}
		p, err := s.GetPrompt(ctx, name, version)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("%s prompt: %v", kind, err))
		}
		return p, err
	}

	var out ResolvedPrompts
	var err error
	if out.Instruction, err = resolve("instruction", c.InstructionPromptName, c.InstructionPromptVersion); err != nil {
		return nil, err
	}
	if out.Personality, err = resolve("personality", c.PersonalityPromptName, c.PersonalityPromptVersion); err != nil {
		return nil, err
	}
	if out.Questions, err = resolve("questions", c.QuestionsPromptName, c.QuestionsPromptVersion); err != nil {
		return nil, err
	}
	return &out, nil
}

// Questionnaire templates

func (s *Service) CreateQuestionnaireTemplate(ctx context.Context, q *models.QuestionnaireTemplate) (*models.QuestionnaireTemplate, error) {
	q.Name = strings.TrimSpace(q.Name)
	if err := validation.Struct(q); err != nil {
		return nil, err
	}
	if len(q.Questions) > 0 && !json.Valid(q.Questions) {
		return nil, apperr.E(apperr.ErrInvalid, "questions must be valid JSON")
	}

	last, err := s.repo.QuestionnaireTemplate.MaxQuestionnaireTemplateVersion(ctx, q.Name)
	if err != nil {
		return nil, fmt.Errorf("max questionnaire template version: %w", err)
	}
	q.Version = last + 1
	q.IsDeleted = false
	if err := s.repo.QuestionnaireTemplate.CreateQuestionnaireTemplate(ctx, q); err != nil {
		return nil, fmt.Errorf("create questionnaire template: %w", err)
	}
	s.record(ctx, "QuestionnaireTemplate", q.Name, q.Version, "questionnaire_templates", false)
	return q, nil
}

func (s *Service) GetQuestionnaireTemplate(ctx context.Context, name string, version *int) (*models.QuestionnaireTemplate, error) {
	var q *models.QuestionnaireTemplate
	var err error
	if version != nil {
		q, err = s.repo.QuestionnaireTemplate.GetQuestionnaireTemplate(ctx, name, *version)
	} else {
		q, err = s.repo.QuestionnaireTemplate.GetLatestQuestionnaireTemplate(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get questionnaire template: %w", err)
	}
	if q == nil || q.IsDeleted {
		return nil, notFound("questionnaire template", name, version)
	}
	return q, nil
}

func (s *Service) ListQuestionnaireTemplates(ctx context.Context, page models.Page) ([]models.QuestionnaireTemplate, int64, error) {
	items, total, err := s.repo.QuestionnaireTemplate.ListLatestQuestionnaireTemplates(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list questionnaire templates: %w", err)
	}
	return items, total, nil
}

func (s *Service) DeleteQuestionnaireTemplate(ctx context.Context, name string, version int) error {
	if _, err := s.GetQuestionnaireTemplate(ctx, name, &version); err != nil {
		return err
	}
	if err := s.repo.QuestionnaireTemplate.SoftDeleteQuestionnaireTemplate(ctx, name, version); err != nil {
		return fmt.Errorf("delete questionnaire template: %w", err)
	}
	s.record(ctx, "QuestionnaireTemplate", name, version, "questionnaire_templates", true)
	return nil
}
