package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/application"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/pkg/models"
)

// ApplicationHandler serves the staff view of applications and the
// candidate's own applications under /v1/me.
type ApplicationHandler struct {
	apps     *application.Service
	profiles *candidate.Service
}

func NewApplicationHandler(apps *application.Service, profiles *candidate.Service) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, profiles: profiles}
}

// candidateID resolves the candidate record of the caller.
func (h *ApplicationHandler) candidateID(r *http.Request) (string, error) {
	c, err := h.profiles.CandidateForUser(r.Context(), caller(r).UserID)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, app, http.StatusOK)
}

type promoteRequest struct {
	CurrentStepNumber int `json:"current_step_number"`
}

func (h *ApplicationHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.apps.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	as, err := h.apps.PromoteToNextStep(r.Context(), app.ID, app.JobPostName, app.JobPostVersion, req.CurrentStepNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, as, http.StatusOK)
}

func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.apps.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, app, http.StatusOK)
}

// Candidate routes

func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	cid, err := h.candidateID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apps, err := h.apps.ListByCandidate(r.Context(), cid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []models.JobApplication{}
	}
	writeJSON(w, apps, http.StatusOK)
}

type applyRequest struct {
	JobPostName    string `json:"job_post_name"`
	JobPostVersion int    `json:"job_post_version"`
}

// Apply answers 201 for a new application and 200 when it already existed.
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cid, err := h.candidateID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	app, created, err := h.apps.CreateOrGet(r.Context(), cid, req.JobPostName, req.JobPostVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, app, status)
}

func (h *ApplicationHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	cid, err := h.candidateID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.apps.GetForCandidate(r.Context(), mux.Vars(r)["id"], cid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, app, http.StatusOK)
}

type beginStepRequest struct {
	StepName    string `json:"step_name"`
	StepVersion *int   `json:"step_version,omitempty"`
	StepNumber  int    `json:"step_number"`
}

func (h *ApplicationHandler) BeginStep(w http.ResponseWriter, r *http.Request) {
	var req beginStepRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cid, err := h.candidateID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.apps.GetForCandidate(r.Context(), mux.Vars(r)["id"], cid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.apps.BeginStep(r.Context(), app.ID, req.StepName, req.StepVersion, req.StepNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

type completeStepRequest struct {
	Data json.RawMessage `json:"data,omitempty"`
}

func (h *ApplicationHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	n, err := pathInt(r, "step")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req completeStepRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	cid, err := h.candidateID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	app, err := h.apps.GetForCandidate(r.Context(), mux.Vars(r)["id"], cid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	as, err := h.apps.CompleteStep(r.Context(), app.ID, n, req.Data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, as, http.StatusOK)
}

func (h *ApplicationHandler) Progress(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cid, err := h.candidateID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.apps.GetMyProgress(r.Context(), cid, name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, p, http.StatusOK)
}
