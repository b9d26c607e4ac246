package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/application"
	"github.com/garnizeh/recruiter/internal/jobpost"
	"github.com/garnizeh/recruiter/pkg/models"
)

// JobPostHandler serves job posts, their steps and assignments.
type JobPostHandler struct {
	posts       *jobpost.Service
	steps       *jobpost.StepService
	assignments *jobpost.AssignmentService
	orch        *jobpost.Orchestrator
	apps        *application.Service
}

func NewJobPostHandler(posts *jobpost.Service, steps *jobpost.StepService, assignments *jobpost.AssignmentService, orch *jobpost.Orchestrator, apps *application.Service) *JobPostHandler {
	return &JobPostHandler{posts: posts, steps: steps, assignments: assignments, orch: orch, apps: apps}
}

func postFilter(r *http.Request) models.JobPostFilter {
	q := r.URL.Query()
	return models.JobPostFilter{
		Status:            q.Get("status"),
		OriginCountryCode: q.Get("country"),
		Search:            q.Get("q"),
		IncludeDeleted:    queryBool(r, "include_deleted"),
	}
}

// nameVersion reads the {name} and {version} path variables.
func nameVersion(r *http.Request) (string, int, error) {
	v, err := pathInt(r, "version")
	return mux.Vars(r)["name"], v, err
}

// Job posts

func (h *JobPostHandler) List(w http.ResponseWriter, r *http.Request) {
	p := page(r)
	items, total, err := h.posts.ListLatest(r.Context(), postFilter(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total, p)
}

func (h *JobPostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p models.JobPost
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.posts.Create(r.Context(), &p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, created, http.StatusCreated)
}

func (h *JobPostHandler) CreateWithSteps(w http.ResponseWriter, r *http.Request) {
	var req jobpost.WithStepsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.orch.CreateWithSteps(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusCreated)
}

func (h *JobPostHandler) UpdateWithSteps(w http.ResponseWriter, r *http.Request) {
	var req jobpost.WithStepsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.orch.UpdateWithSteps(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

func (h *JobPostHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	d, err := h.orch.GetLatestWithSteps(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

func (h *JobPostHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.orch.GetWithSteps(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

func (h *JobPostHandler) Versions(w http.ResponseWriter, r *http.Request) {
	items, err := h.posts.ListVersions(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, items, http.StatusOK)
}

// Update edits a version in place, or creates the next version with ?new_version=true.
func (h *JobPostHandler) Update(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p models.JobPost
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	p.Name, p.Version = name, version
	updated, err := h.posts.Update(r.Context(), &p, queryBool(r, "new_version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, updated, http.StatusOK)
}

func (h *JobPostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	soft, err := h.orch.Delete(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"soft_deleted": soft}, http.StatusOK)
}

type duplicatePostRequest struct {
	NewName     string `json:"new_name"`
	NewJobTitle string `json:"new_job_title"`
}

func (h *JobPostHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req duplicatePostRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.orch.Duplicate(r.Context(), name, version, req.NewName, req.NewJobTitle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusCreated)
}

// Assignments

func (h *JobPostHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.assignments.ListByJobPost(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, items, http.StatusOK)
}

type assignRequest struct {
	StepName    string `json:"step_name"`
	StepVersion *int   `json:"step_version,omitempty"`
	StepNumber  int    `json:"step_number"`
	Status      string `json:"status,omitempty"`
}

func (h *JobPostHandler) Assign(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.assignments.Assign(r.Context(), name, version, strings.TrimSpace(req.StepName), req.StepVersion, req.StepNumber, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, a, http.StatusCreated)
}

func (h *JobPostHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stepVersion, err := queryVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.assignments.Unassign(r.Context(), name, version, mux.Vars(r)["step"], stepVersion); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *JobPostHandler) UpdateAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.assignments.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pipeline lists every application of a post with its step progress.
func (h *JobPostHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.apps.ListByJobPost(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []application.PipelineEntry{}
	}
	writeJSON(w, items, http.StatusOK)
}

// Steps

func (h *JobPostHandler) ListSteps(w http.ResponseWriter, r *http.Request) {
	p := page(r)
	items, total, err := h.steps.ListLatest(r.Context(), r.URL.Query().Get("q"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total, p)
}

func (h *JobPostHandler) CreateStep(w http.ResponseWriter, r *http.Request) {
	var s models.JobPostStep
	if err := decode(w, r, &s); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.steps.Create(r.Context(), &s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, created, http.StatusCreated)
}

func (h *JobPostHandler) GetLatestStep(w http.ResponseWriter, r *http.Request) {
	s, err := h.steps.GetLatest(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s, http.StatusOK)
}

func (h *JobPostHandler) GetStep(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.steps.Get(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s, http.StatusOK)
}

func (h *JobPostHandler) StepVersions(w http.ResponseWriter, r *http.Request) {
	items, err := h.steps.ListVersions(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, items, http.StatusOK)
}

func (h *JobPostHandler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var s models.JobPostStep
	if err := decode(w, r, &s); err != nil {
		writeError(w, r, err)
		return
	}
	s.Name, s.Version = name, version
	updated, err := h.steps.Update(r.Context(), &s, queryBool(r, "new_version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, updated, http.StatusOK)
}

func (h *JobPostHandler) DeleteStep(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	soft, err := h.steps.Delete(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"soft_deleted": soft}, http.StatusOK)
}

func (h *JobPostHandler) RestoreStep(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.steps.Restore(r.Context(), name, version); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type duplicateStepRequest struct {
	NewName         string `json:"new_name"`
	NewDisplayTitle string `json:"new_display_title"`
}

func (h *JobPostHandler) DuplicateStep(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req duplicateStepRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.steps.Duplicate(r.Context(), name, version, req.NewName, req.NewDisplayTitle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s, http.StatusCreated)
}

// Public job board

func (h *JobPostHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	p := page(r)
	items, total, err := h.orch.ListPublished(r.Context(), postFilter(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total, p)
}

func (h *JobPostHandler) PublicGetLatest(w http.ResponseWriter, r *http.Request) {
	d, err := h.orch.GetLatestPublished(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}

func (h *JobPostHandler) PublicGet(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.orch.GetPublished(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, d, http.StatusOK)
}
