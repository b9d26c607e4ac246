package repository

import (
	"context"
	"time"

	"github.com/garnizeh/recruiter/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Conventions: Get* returns (nil, nil) when the row does not exist and returns
// soft-deleted rows with IsDeleted set. GetLatest* and List* skip soft-deleted rows.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserRoles(ctx context.Context, id string, roles []string) error
	DeleteUser(ctx context.Context, id string) error
}

type JobPostRepo interface {
	CreateJobPost(ctx context.Context, p *models.JobPost) error
	UpdateJobPost(ctx context.Context, p *models.JobPost) error
	GetJobPost(ctx context.Context, name string, version int) (*models.JobPost, error)
	GetLatestJobPost(ctx context.Context, name string) (*models.JobPost, error)
	// MaxJobPostVersion counts soft-deleted rows so versions are never reused.
	MaxJobPostVersion(ctx context.Context, name string) (int, error)
	ListLatestJobPosts(ctx context.Context, f models.JobPostFilter, p models.Page) ([]models.JobPost, int64, error)
	ListJobPostVersions(ctx context.Context, name string) ([]models.JobPost, error)
	SoftDeleteJobPost(ctx context.Context, name string, version int) error
	// DeleteJobPost removes the post together with its step assignments.
	DeleteJobPost(ctx context.Context, name string, version int) error
}

type JobPostStepRepo interface {
	CreateStep(ctx context.Context, s *models.JobPostStep) error
	UpdateStep(ctx context.Context, s *models.JobPostStep) error
	GetStep(ctx context.Context, name string, version int) (*models.JobPostStep, error)
	GetLatestStep(ctx context.Context, name string) (*models.JobPostStep, error)
	MaxStepVersion(ctx context.Context, name string) (int, error)
	ListLatestSteps(ctx context.Context, search string, p models.Page) ([]models.JobPostStep, int64, error)
	ListStepVersions(ctx context.Context, name string) ([]models.JobPostStep, error)
	SetStepDeleted(ctx context.Context, name string, version int, deleted bool) error
	DeleteStep(ctx context.Context, name string, version int) error
}

type AssignmentRepo interface {
	CreateAssignment(ctx context.Context, a *models.JobPostStepAssignment) error
	GetAssignment(ctx context.Context, id string) (*models.JobPostStepAssignment, error)
	// FindAssignment matches stepVersion exactly; nil matches dynamic-latest rows only.
	FindAssignment(ctx context.Context, postName string, postVersion int, stepName string, stepVersion *int) (*models.JobPostStepAssignment, error)
	ListAssignmentsByJobPost(ctx context.Context, postName string, postVersion int) ([]models.JobPostStepAssignment, error)
	UpdateAssignmentStatus(ctx context.Context, id, status string) error
	DeleteAssignment(ctx context.Context, id string) error
	CountAssignmentsForStep(ctx context.Context, stepName string, stepVersion *int) (int64, error)
}

type ApplicationRepo interface {
	CreateApplication(ctx context.Context, a *models.JobApplication) error
	GetApplication(ctx context.Context, id string) (*models.JobApplication, error)
	FindApplication(ctx context.Context, candidateID, postName string, postVersion int) (*models.JobApplication, error)
	UpdateApplicationStatus(ctx context.Context, id, status string, completedAt *time.Time) error
	ListApplicationsByJobPost(ctx context.Context, postName string, postVersion int) ([]models.JobApplication, error)
	ListApplicationsByCandidate(ctx context.Context, candidateID string) ([]models.JobApplication, error)
	CountApplicationsByJobPost(ctx context.Context, postName string, postVersion int) (int64, error)

	CreateApplicationStep(ctx context.Context, s *models.JobApplicationStep) error
	GetApplicationStep(ctx context.Context, id string) (*models.JobApplicationStep, error)
	FindApplicationStep(ctx context.Context, applicationID string, stepNumber int) (*models.JobApplicationStep, error)
	UpdateApplicationStep(ctx context.Context, s *models.JobApplicationStep) error
	ListApplicationSteps(ctx context.Context, applicationID string) ([]models.JobApplicationStep, error)
	CountApplicationStepsForStep(ctx context.Context, stepName string, stepVersion int) (int64, error)
}

type InterviewRepo interface {
	CreateInterview(ctx context.Context, i *models.Interview) error
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	GetInterviewByConversationID(ctx context.Context, conversationID string) (*models.Interview, error)
	GetInterviewByApplicationStep(ctx context.Context, applicationStepID string) (*models.Interview, error)
	UpdateInterview(ctx context.Context, i *models.Interview) error
}

type PromptRepo interface {
	CreatePrompt(ctx context.Context, p *models.Prompt) error
	GetPrompt(ctx context.Context, name string, version int) (*models.Prompt, error)
	GetLatestPrompt(ctx context.Context, name string) (*models.Prompt, error)
	MaxPromptVersion(ctx context.Context, name string) (int, error)
	ListLatestPrompts(ctx context.Context, category string, p models.Page) ([]models.Prompt, int64, error)
	SoftDeletePrompt(ctx context.Context, name string, version int) error
}

type InterviewConfigurationRepo interface {
	CreateInterviewConfiguration(ctx context.Context, c *models.InterviewConfiguration) error
	GetInterviewConfiguration(ctx context.Context, name string, version int) (*models.InterviewConfiguration, error)
	GetLatestInterviewConfiguration(ctx context.Context, name string) (*models.InterviewConfiguration, error)
	MaxInterviewConfigurationVersion(ctx context.Context, name string) (int, error)
	ListLatestInterviewConfigurations(ctx context.Context, p models.Page) ([]models.InterviewConfiguration, int64, error)
	SoftDeleteInterviewConfiguration(ctx context.Context, name string, version int) error
}

type QuestionnaireTemplateRepo interface {
	CreateQuestionnaireTemplate(ctx context.Context, q *models.QuestionnaireTemplate) error
	GetQuestionnaireTemplate(ctx context.Context, name string, version int) (*models.QuestionnaireTemplate, error)
	GetLatestQuestionnaireTemplate(ctx context.Context, name string) (*models.QuestionnaireTemplate, error)
	MaxQuestionnaireTemplateVersion(ctx context.Context, name string) (int, error)
	ListLatestQuestionnaireTemplates(ctx context.Context, p models.Page) ([]models.QuestionnaireTemplate, int64, error)
	SoftDeleteQuestionnaireTemplate(ctx context.Context, name string, version int) error
}

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p *models.UserProfile) error
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetProfileByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, p *models.UserProfile) error
	// DeleteProfile hard-deletes a profile. It backs out a failed registration.
	DeleteProfile(ctx context.Context, id string) error

	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	GetCandidateByProfileID(ctx context.Context, profileID string) (*models.Candidate, error)
	UpdateCandidateCV(ctx context.Context, id string, fileID *string) error
}

type ProfileSectionRepo interface {
	CreateSkill(ctx context.Context, s *models.Skill) error
	GetSkill(ctx context.Context, id string) (*models.Skill, error)
	UpdateSkill(ctx context.Context, s *models.Skill) error
	DeleteSkill(ctx context.Context, id string) error
	ListSkills(ctx context.Context, profileID string) ([]models.Skill, error)

	CreateEducation(ctx context.Context, e *models.Education) error
	GetEducation(ctx context.Context, id string) (*models.Education, error)
	UpdateEducation(ctx context.Context, e *models.Education) error
	DeleteEducation(ctx context.Context, id string) error
	ListEducation(ctx context.Context, profileID string) ([]models.Education, error)

	CreateExperience(ctx context.Context, e *models.Experience) error
	GetExperience(ctx context.Context, id string) (*models.Experience, error)
	UpdateExperience(ctx context.Context, e *models.Experience) error
	DeleteExperience(ctx context.Context, id string) error
	ListExperience(ctx context.Context, profileID string) ([]models.Experience, error)

	CreateCertification(ctx context.Context, c *models.CertificationLicense) error
	GetCertification(ctx context.Context, id string) (*models.CertificationLicense, error)
	UpdateCertification(ctx context.Context, c *models.CertificationLicense) error
	DeleteCertification(ctx context.Context, id string) error
	ListCertifications(ctx context.Context, profileID string) ([]models.CertificationLicense, error)

	CreateAward(ctx context.Context, a *models.AwardAchievement) error
	GetAward(ctx context.Context, id string) (*models.AwardAchievement, error)
	UpdateAward(ctx context.Context, a *models.AwardAchievement) error
	DeleteAward(ctx context.Context, id string) error
	ListAwards(ctx context.Context, profileID string) ([]models.AwardAchievement, error)
}

type FileRepo interface {
	CreateFile(ctx context.Context, f *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	ListFilesByOwner(ctx context.Context, ownerUserID string) ([]models.File, error)
	SoftDeleteFile(ctx context.Context, id string) error
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error)
	GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, version string) error
}

// Repository bundles every contract; the sqlite implementation satisfies all of them.
type Repository struct {
	User                   UserRepo
	JobPost                JobPostRepo
	Step                   JobPostStepRepo
	Assignment             AssignmentRepo
	Application            ApplicationRepo
	Interview              InterviewRepo
	Prompt                 PromptRepo
	InterviewConfiguration InterviewConfigurationRepo
	QuestionnaireTemplate  QuestionnaireTemplateRepo
	Profile                ProfileRepo
	Section                ProfileSectionRepo
	File                   FileRepo
	Schema                 SchemaRepo
}
