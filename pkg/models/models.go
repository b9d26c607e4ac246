package models

import (
	"encoding/json"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

// Job post statuses.
const (
	JobPostStatusDraft     = "Draft"
	JobPostStatusPublished = "Published"
	JobPostStatusArchived  = "Archived"
)

// Step types and participants.
const (
	StepTypeInterview      = "Interview"
	StepTypeQuestionnaire  = "Questionnaire"
	StepTypeDocumentUpload = "Document Upload"
	StepTypeInformation    = "Information"
	StepTypeOther          = "Other"

	ParticipantCandidate = "Candidate"
	ParticipantRecruiter = "Recruiter"
	ParticipantAdmin     = "Admin"
)

// Assignment statuses.
const (
	AssignmentStatusPending = "pending"
	AssignmentStatusActive  = "active"
)

// Application and application step statuses.
const (
	StepStatusPending    = "Pending"
	StepStatusInProgress = "InProgress"
	StepStatusCompleted  = "Completed"

	ApplicationStatusInProgress = "InProgress"
	ApplicationStatusCompleted  = "Completed"
	ApplicationStatusRejected   = "Rejected"
	ApplicationStatusWithdrawn  = "Withdrawn"
)

// User roles carried in JWT claims.
const (
	RoleAdmin     = "Admin"
	RoleRecruiter = "Recruiter"
	RoleCandidate = "Candidate"
)

// Audit holds the columns every table carries.
type Audit struct {
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email" validate:"required,email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type JobPost struct {
	Name                             string   `json:"name" validate:"required,max=255"`
	Version                          int      `json:"version"`
	MaxAmountOfCandidatesRestriction int      `json:"max_amount_of_candidates_restriction" validate:"gte=0"`
	MinimumRequirements              []string `json:"minimum_requirements"`
	ExperienceLevel                  string   `json:"experience_level" validate:"required"`
	JobTitle                         string   `json:"job_title" validate:"required,max=255"`
	JobType                          string   `json:"job_type" validate:"required"`
	JobDescription                   string   `json:"job_description"`
	Industry                         string   `json:"industry,omitempty"`
	IntroText                        string   `json:"intro_text,omitempty"`
	Requirements                     string   `json:"requirements,omitempty"`
	WhatWeOffer                      string   `json:"what_we_offer,omitempty"`
	CompanyInfo                      string   `json:"company_info,omitempty"`
	PoliceReportRequired             *bool    `json:"police_report_required,omitempty"`
	Status                           string   `json:"status" validate:"omitempty,oneof=Draft Published Archived"`
	OriginCountryCode                *string  `json:"origin_country_code,omitempty" validate:"omitempty,len=2"`
	Audit
}

type JobPostStep struct {
	Name                          string `json:"name" validate:"required,max=255"`
	Version                       int    `json:"version"`
	StepType                      string `json:"step_type" validate:"required"`
	Participant                   string `json:"participant" validate:"required,oneof=Candidate Recruiter Admin"`
	IsInterview                   bool   `json:"is_interview"`
	ShowStepForCandidate          bool   `json:"show_step_for_candidate"`
	DisplayTitle                  string `json:"display_title,omitempty"`
	DisplayContent                string `json:"display_content,omitempty"`
	ShowSpinner                   bool   `json:"show_spinner"`
	InterviewConfigurationName    string `json:"interview_configuration_name,omitempty"`
	InterviewConfigurationVersion *int   `json:"interview_configuration_version,omitempty"`
	QuestionnaireTemplateName     string `json:"questionnaire_template_name,omitempty"`
	QuestionnaireTemplateVersion  *int   `json:"questionnaire_template_version,omitempty"`
	Audit
}

// JobPostStepAssignment places a step inside a job post. A nil StepVersion
// always resolves to the newest non-deleted version of the step.
type JobPostStepAssignment struct {
	ID             string    `json:"id"`
	JobPostName    string    `json:"job_post_name"`
	JobPostVersion int       `json:"job_post_version"`
	StepName       string    `json:"step_name"`
	StepVersion    *int      `json:"step_version,omitempty"`
	StepNumber     int       `json:"step_number"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AssignmentWithStep is an assignment with its resolved step definition.
type AssignmentWithStep struct {
	JobPostStepAssignment
	Step *JobPostStep `json:"step,omitempty"`
}

type JobApplication struct {
	ID             string     `json:"id"`
	JobPostName    string     `json:"job_post_name"`
	JobPostVersion int        `json:"job_post_version"`
	CandidateID    string     `json:"candidate_id"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Audit
}

type JobApplicationStep struct {
	ID                 string          `json:"id"`
	JobApplicationID   string          `json:"job_application_id"`
	JobPostStepName    string          `json:"job_post_step_name"`
	JobPostStepVersion int             `json:"job_post_step_version"`
	StepNumber         int             `json:"step_number"`
	Status             string          `json:"status"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
	Audit
}

type Interview struct {
	ID                            string     `json:"id"`
	JobApplicationStepID          string     `json:"job_application_step_id"`
	ConversationID                string     `json:"conversation_id,omitempty"`
	InterviewConfigurationName    string     `json:"interview_configuration_name"`
	InterviewConfigurationVersion int        `json:"interview_configuration_version"`
	InstructionPromptName         string     `json:"instruction_prompt_name"`
	InstructionPromptVersion      int        `json:"instruction_prompt_version"`
	PersonalityPromptName         string     `json:"personality_prompt_name"`
	PersonalityPromptVersion      int        `json:"personality_prompt_version"`
	QuestionsPromptName           string     `json:"questions_prompt_name"`
	QuestionsPromptVersion        int        `json:"questions_prompt_version"`
	TranscriptURL                 string     `json:"transcript_url,omitempty"`
	AudioURL                      string     `json:"audio_url,omitempty"`
	StartedAt                     *time.Time `json:"started_at,omitempty"`
	CompletedAt                   *time.Time `json:"completed_at,omitempty"`
	Duration                      *float64   `json:"duration,omitempty"`
	Audit
}

type Prompt struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Version  int      `json:"version"`
	Category string   `json:"category" validate:"required,max=100"`
	Content  string   `json:"content" validate:"required"`
	Locale   string   `json:"locale,omitempty" validate:"omitempty,max=10"`
	Tags     []string `json:"tags"`
	Audit
}

type InterviewConfiguration struct {
	Name                     string `json:"name" validate:"required,max=255"`
	Version                  int    `json:"version"`
	Modality                 string `json:"modality" validate:"required"`
	Tone                     string `json:"tone,omitempty"`
	ProbingDepth             string `json:"probing_depth,omitempty"`
	FocusArea                string `json:"focus_area,omitempty"`
	Language                 string `json:"language,omitempty"`
	Duration                 *int   `json:"duration,omitempty" validate:"omitempty,gt=0"`
	InstructionPromptName    string `json:"instruction_prompt_name" validate:"required"`
	InstructionPromptVersion *int   `json:"instruction_prompt_version,omitempty" validate:"omitempty,gt=0"`
	PersonalityPromptName    string `json:"personality_prompt_name" validate:"required"`
	PersonalityPromptVersion *int   `json:"personality_prompt_version,omitempty" validate:"omitempty,gt=0"`
	QuestionsPromptName      string `json:"questions_prompt_name" validate:"required"`
	QuestionsPromptVersion   *int   `json:"questions_prompt_version,omitempty" validate:"omitempty,gt=0"`
	Audit
}

type QuestionnaireTemplate struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Version      int             `json:"version"`
	Title        string          `json:"title" validate:"required"`
	Description  string          `json:"description,omitempty"`
	TemplateType string          `json:"template_type" validate:"required,oneof=Assessment Survey"`
	Questions    json.RawMessage `json:"questions,omitempty"`
	Audit
}

type UserProfile struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"user_id"`
	Name               string   `json:"name" validate:"required,max=255"`
	Email              string   `json:"email" validate:"required,email"`
	PhoneNumber        string   `json:"phone_number,omitempty" validate:"omitempty,max=20"`
	Nationality        string   `json:"nationality,omitempty"`
	ProfilePictureURL  string   `json:"profile_picture_url,omitempty"`
	ResumeURL          string   `json:"resume_url,omitempty"`
	JobTypePreferences []string `json:"job_type_preferences"`
	RemotePreferences  []string `json:"remote_preferences"`
	Roles              []string `json:"roles"`
	Age                *int     `json:"age,omitempty" validate:"omitempty,gte=14,lte=120"`
	Bio                string   `json:"bio,omitempty"`
	OpenToRelocation   bool     `json:"open_to_relocation"`
	Audit
}

type Candidate struct {
	ID            string  `json:"id"`
	UserProfileID string  `json:"user_profile_id"`
	CandidateCode string  `json:"candidate_code"`
	CvFileID      *string `json:"cv_file_id,omitempty"`
	Audit
}

type Skill struct {
	ID              string `json:"id"`
	UserProfileID   string `json:"user_profile_id"`
	Category        string `json:"category,omitempty"`
	SkillName       string `json:"skill_name" validate:"required,max=200"`
	Proficiency     string `json:"proficiency,omitempty"`
	YearsExperience *int   `json:"years_experience,omitempty" validate:"omitempty,gte=0"`
	Audit
}

type Education struct {
	ID            string  `json:"id"`
	UserProfileID string  `json:"user_profile_id"`
	Degree        string  `json:"degree,omitempty"`
	Institution   string  `json:"institution,omitempty"`
	FieldOfStudy  string  `json:"field_of_study,omitempty"`
	Location      string  `json:"location,omitempty"`
	StartDate     *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Audit
}

type Experience struct {
	ID            string  `json:"id"`
	UserProfileID string  `json:"user_profile_id"`
	Title         string  `json:"title,omitempty"`
	Organization  string  `json:"organization,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	Location      string  `json:"location,omitempty"`
	StartDate     *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description   string  `json:"description,omitempty"`
	Audit
}

type CertificationLicense struct {
	ID            string  `json:"id"`
	UserProfileID string  `json:"user_profile_id"`
	Name          string  `json:"name" validate:"required,max=200"`
	Issuer        string  `json:"issuer,omitempty"`
	DateIssued    *string `json:"date_issued,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ValidUntil    *string `json:"valid_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Audit
}

type AwardAchievement struct {
	ID            string `json:"id"`
	UserProfileID string `json:"user_profile_id"`
	Title         string `json:"title" validate:"required,max=200"`
	Issuer        string `json:"issuer,omitempty"`
	Year          *int   `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Description   string `json:"description,omitempty"`
	Audit
}

// FullProfile aggregates a profile and every section.
type FullProfile struct {
	Profile        *UserProfile           `json:"profile"`
	Candidate      *Candidate             `json:"candidate,omitempty"`
	Skills         []Skill                `json:"skills"`
	Education      []Education            `json:"education"`
	Experience     []Experience           `json:"experience"`
	Certifications []CertificationLicense `json:"certifications"`
	Awards         []AwardAchievement     `json:"awards"`
}

// CVExtraction is the structured CV returned by the language model.
type CVExtraction struct {
	Name           string                 `json:"name"`
	Email          string                 `json:"email,omitempty"`
	PhoneNumber    string                 `json:"phone_number,omitempty"`
	Nationality    string                 `json:"nationality,omitempty"`
	Bio            string                 `json:"bio,omitempty"`
	Skills         []Skill                `json:"skills"`
	Education      []Education            `json:"education"`
	Experience     []Experience           `json:"experience"`
	Certifications []CertificationLicense `json:"certifications,omitempty"`
	Awards         []AwardAchievement     `json:"awards,omitempty"`
}

type File struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"owner_user_id"`
	Kind        string `json:"kind"`
	Container   string `json:"container"`
	FolderPath  string `json:"folder_path,omitempty"`
	FilePath    string `json:"file_path"`
	Extension   string `json:"extension"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Audit
}

// Schema is a JSON schema used to validate LLM output.
type Schema struct {
	ID          int64  `json:"id"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	SchemaJSON  string `json:"schema_json"`
	Created     int64  `json:"created"`
	Updated     int64  `json:"updated"`
}

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// JobPostFilter narrows job post listings.
type JobPostFilter struct {
	Status            string
	OriginCountryCode string
	Search            string
	IncludeDeleted    bool
}
