package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/application"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/internal/catalog"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/cvparse"
	"github.com/garnizeh/recruiter/internal/files"
	"github.com/garnizeh/recruiter/internal/interview"
	"github.com/garnizeh/recruiter/internal/jobpost"
	"github.com/garnizeh/recruiter/internal/storage"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Repo         *repository.Repository
	Profiles     *candidate.Service
	Catalog      *catalog.Service
	Posts        *jobpost.Service
	Steps        *jobpost.StepService
	Assignments  *jobpost.AssignmentService
	Orchestrator *jobpost.Orchestrator
	Applications *application.Service
	Interviews   *interview.Service
	Files        *files.Service

	// LocalStorage is set when blobs live on disk and signed links are served here.
	LocalStorage *storage.Local
	SchemaLoader *cvparse.Loader
	Webhook      SignatureValidator
	Health       map[string]HealthCheck
}

const versionPattern = "{version:[0-9]+}"

func SetupRoutes(cfg *config.Config, version, buildTime string, svc *Services) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(TimeoutMiddleware(cfg.APITimeout))

	systemHandler := &SystemHandler{Checks: svc.Health}
	authHandler := NewAuthHandler(svc.Repo.User, svc.Profiles, cfg.JWTSecret, cfg.TokenDuration)
	postHandler := NewJobPostHandler(svc.Posts, svc.Steps, svc.Assignments, svc.Orchestrator, svc.Applications)
	appHandler := NewApplicationHandler(svc.Applications, svc.Profiles)
	catalogHandler := NewCatalogHandler(svc.Catalog)
	profileHandler := NewProfileHandler(svc.Profiles)
	interviewHandler := NewInterviewHandler(svc.Interviews, svc.Profiles, svc.Webhook)
	fileHandler := NewFileHandler(svc.Files, svc.LocalStorage, cfg.Storage.MaxUploadBytes)
	schemaHandler := NewSchemaHandler(svc.Repo.Schema, svc.SchemaLoader)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods(http.MethodPost)
	r.HandleFunc("/v1/public/jobs", postHandler.PublicList).Methods(http.MethodGet)
	r.HandleFunc("/v1/public/jobs/{name}", postHandler.PublicGetLatest).Methods(http.MethodGet)
	r.HandleFunc("/v1/public/jobs/{name}/"+versionPattern, postHandler.PublicGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/webhooks/elevenlabs", interviewHandler.Webhook).Methods(http.MethodPost)
	r.HandleFunc(storage.LocalRoutePrefix+"{token}", fileHandler.LocalGet).Methods(http.MethodGet)
	r.HandleFunc(storage.LocalRoutePrefix+"{token}", fileHandler.LocalPut).Methods(http.MethodPut)

	// Any authenticated user
	authed := r.PathPrefix("/v1").Subrouter()
	authed.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	authed.HandleFunc("/auth/signout", authHandler.Signout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)
	authed.HandleFunc("/files", fileHandler.Upload).Methods(http.MethodPost)
	authed.HandleFunc("/files", fileHandler.List).Methods(http.MethodGet)
	authed.HandleFunc("/files/{id}", fileHandler.Download).Methods(http.MethodGet)
	authed.HandleFunc("/files/{id}", fileHandler.Delete).Methods(http.MethodDelete)
	authed.HandleFunc("/files/{id}/sas", fileHandler.SAS).Methods(http.MethodGet)

	// Admin only
	admin := r.PathPrefix("/v1").Subrouter()
	admin.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	admin.Use(RequireRole(models.RoleAdmin))
	admin.HandleFunc("/users/{id}/roles", authHandler.SetRoles).Methods(http.MethodPut)
	admin.HandleFunc("/admin/schemas", schemaHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/admin/schemas", schemaHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/admin/schemas/reload", schemaHandler.Reload).Methods(http.MethodPost)
	admin.HandleFunc("/admin/schemas/{version}", schemaHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/admin/schemas/{version}", schemaHandler.Delete).Methods(http.MethodDelete)

	// Admin and Recruiter
	staff := r.PathPrefix("/v1").Subrouter()
	staff.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	staff.Use(RequireRole(models.RoleAdmin, models.RoleRecruiter))

	staff.HandleFunc("/job-posts", postHandler.List).Methods(http.MethodGet)
	staff.HandleFunc("/job-posts", postHandler.Create).Methods(http.MethodPost)
	staff.HandleFunc("/job-posts/with-steps", postHandler.CreateWithSteps).Methods(http.MethodPost)
	staff.HandleFunc("/job-posts/with-steps", postHandler.UpdateWithSteps).Methods(http.MethodPut)
	staff.HandleFunc("/job-posts/{name}", postHandler.GetLatest).Methods(http.MethodGet)
	staff.HandleFunc("/job-posts/{name}/versions", postHandler.Versions).Methods(http.MethodGet)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern, postHandler.Get).Methods(http.MethodGet)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern, postHandler.Update).Methods(http.MethodPut)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern, postHandler.Delete).Methods(http.MethodDelete)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern+"/duplicate", postHandler.Duplicate).Methods(http.MethodPost)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern+"/assignments", postHandler.ListAssignments).Methods(http.MethodGet)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern+"/assignments", postHandler.Assign).Methods(http.MethodPost)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern+"/assignments/{step}", postHandler.Unassign).Methods(http.MethodDelete)
	staff.HandleFunc("/job-posts/{name}/"+versionPattern+"/applications", postHandler.Pipeline).Methods(http.MethodGet)
	staff.HandleFunc("/assignments/{id}/status", postHandler.UpdateAssignmentStatus).Methods(http.MethodPut)

	staff.HandleFunc("/job-post-steps", postHandler.ListSteps).Methods(http.MethodGet)
	staff.HandleFunc("/job-post-steps", postHandler.CreateStep).Methods(http.MethodPost)
	staff.HandleFunc("/job-post-steps/{name}", postHandler.GetLatestStep).Methods(http.MethodGet)
	staff.HandleFunc("/job-post-steps/{name}/versions", postHandler.StepVersions).Methods(http.MethodGet)
	staff.HandleFunc("/job-post-steps/{name}/"+versionPattern, postHandler.GetStep).Methods(http.MethodGet)
	staff.HandleFunc("/job-post-steps/{name}/"+versionPattern, postHandler.UpdateStep).Methods(http.MethodPut)
	staff.HandleFunc("/job-post-steps/{name}/"+versionPattern, postHandler.DeleteStep).Methods(http.MethodDelete)
	staff.HandleFunc("/job-post-steps/{name}/"+versionPattern+"/restore", postHandler.RestoreStep).Methods(http.MethodPost)
	staff.HandleFunc("/job-post-steps/{name}/"+versionPattern+"/duplicate", postHandler.DuplicateStep).Methods(http.MethodPost)

	staff.HandleFunc("/applications/{id}", appHandler.Get).Methods(http.MethodGet)
	staff.HandleFunc("/applications/{id}/promote", appHandler.Promote).Methods(http.MethodPost)
	staff.HandleFunc("/applications/{id}/status", appHandler.UpdateStatus).Methods(http.MethodPut)

	staff.HandleFunc("/prompts", catalogHandler.ListPrompts).Methods(http.MethodGet)
	staff.HandleFunc("/prompts", catalogHandler.CreatePrompt).Methods(http.MethodPost)
	staff.HandleFunc("/prompts/{name}", catalogHandler.GetPrompt).Methods(http.MethodGet)
	staff.HandleFunc("/prompts/{name}/"+versionPattern, catalogHandler.DeletePrompt).Methods(http.MethodDelete)
	staff.HandleFunc("/interview-configurations", catalogHandler.ListConfigurations).Methods(http.MethodGet)
	staff.HandleFunc("/interview-configurations", catalogHandler.CreateConfiguration).Methods(http.MethodPost)
	staff.HandleFunc("/interview-configurations/{name}", catalogHandler.GetConfiguration).Methods(http.MethodGet)
	staff.HandleFunc("/interview-configurations/{name}/prompts", catalogHandler.ConfigurationPrompts).Methods(http.MethodGet)
	staff.HandleFunc("/interview-configurations/{name}/"+versionPattern, catalogHandler.DeleteConfiguration).Methods(http.MethodDelete)
	staff.HandleFunc("/questionnaire-templates", catalogHandler.ListTemplates).Methods(http.MethodGet)
	staff.HandleFunc("/questionnaire-templates", catalogHandler.CreateTemplate).Methods(http.MethodPost)
	staff.HandleFunc("/questionnaire-templates/{name}", catalogHandler.GetTemplate).Methods(http.MethodGet)
	staff.HandleFunc("/questionnaire-templates/{name}/"+versionPattern, catalogHandler.DeleteTemplate).Methods(http.MethodDelete)

	staff.HandleFunc("/profiles/{id}/full", profileHandler.FullByID).Methods(http.MethodGet)
	staff.HandleFunc("/interviews/{id}", interviewHandler.Get).Methods(http.MethodGet)
	staff.HandleFunc("/interviews/{id}/transcript", interviewHandler.Transcript).Methods(http.MethodGet)
	staff.HandleFunc("/interviews/{id}/audio", interviewHandler.FetchAudio).Methods(http.MethodPost)

	// Candidate
	me := r.PathPrefix("/v1/me").Subrouter()
	me.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	me.Use(RequireRole(models.RoleCandidate))

	me.HandleFunc("/profile", profileHandler.Get).Methods(http.MethodGet)
	me.HandleFunc("/profile", profileHandler.Update).Methods(http.MethodPut)
	me.HandleFunc("/profile/full", profileHandler.Full).Methods(http.MethodGet)
	newSectionHandler(svc.Profiles, svc.Profiles.Skills).register(me, "/profile/skills")
	newSectionHandler(svc.Profiles, svc.Profiles.Education).register(me, "/profile/education")
	newSectionHandler(svc.Profiles, svc.Profiles.Experience).register(me, "/profile/experience")
	newSectionHandler(svc.Profiles, svc.Profiles.Certifications).register(me, "/profile/certifications")
	newSectionHandler(svc.Profiles, svc.Profiles.Awards).register(me, "/profile/awards")

	me.HandleFunc("/applications", appHandler.ListMine).Methods(http.MethodGet)
	me.HandleFunc("/applications", appHandler.Apply).Methods(http.MethodPost)
	me.HandleFunc("/applications/{id}", appHandler.GetMine).Methods(http.MethodGet)
	me.HandleFunc("/applications/{id}/steps/begin", appHandler.BeginStep).Methods(http.MethodPost)
	me.HandleFunc("/applications/{id}/steps/{step:[0-9]+}/complete", appHandler.CompleteStep).Methods(http.MethodPost)
	me.HandleFunc("/progress/{name}/"+versionPattern, appHandler.Progress).Methods(http.MethodGet)
	me.HandleFunc("/interviews/start", interviewHandler.Start).Methods(http.MethodPost)
	me.HandleFunc("/interviews/{id}/conversation", interviewHandler.Bind).Methods(http.MethodPost)

	return r
}
