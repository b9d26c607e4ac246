package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/cvparse"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// SchemaHandler administers the JSON schemas that CV extraction output is checked against.
type SchemaHandler struct {
	repo   repository.SchemaRepo
	loader *cvparse.Loader
}

func NewSchemaHandler(repo repository.SchemaRepo, loader *cvparse.Loader) *SchemaHandler {
	return &SchemaHandler{repo: repo, loader: loader}
}

func (h *SchemaHandler) reload(r *http.Request) {
	if h.loader == nil {
		return
	}
	if err := h.loader.Reload(r.Context()); err != nil {
		logger.Warn("reload schemas", slog.String("error", err.Error()))
	}
}

func (h *SchemaHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeJSON(w, errorResponse{Error: "cv extraction is not configured"}, http.StatusServiceUnavailable)
		return
	}
	if err := h.loader.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"}, http.StatusOK)
}

func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.ListSchemas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Schema{}
	}
	writeJSON(w, rows, http.StatusOK)
}

type schemaRequest struct {
	Version     string          `json:"version"`
	Description string          `json:"description"`
	SchemaJSON  json.RawMessage `json:"schema_json"`
}

// Create stores a schema after checking that it compiles.
func (h *SchemaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p schemaRequest
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	p.Version = strings.TrimSpace(p.Version)
	if p.Version == "" || len(p.SchemaJSON) == 0 {
		writeError(w, r, apperr.E(apperr.ErrInvalid, "version and schema_json are required"))
		return
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(p.SchemaJSON, rs); err != nil {
		writeError(w, r, apperr.E(apperr.ErrInvalid, "invalid schema: "+err.Error()))
		return
	}
	existing, err := h.repo.GetSchemaByVersion(r.Context(), p.Version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, r, apperr.E(apperr.ErrConflict, "schema version already exists"))
		return
	}
	id, err := h.repo.CreateSchema(r.Context(), p.Version, p.Description, string(p.SchemaJSON))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.reload(r)
	writeJSON(w, map[string]any{"id": id, "version": p.Version}, http.StatusCreated)
}

func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetSchemaByVersion(r.Context(), mux.Vars(r)["version"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s == nil {
		writeError(w, r, apperr.E(apperr.ErrNotFound, "schema not found"))
		return
	}
	writeJSON(w, s, http.StatusOK)
}

func (h *SchemaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	s, err := h.repo.GetSchemaByVersion(r.Context(), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s == nil {
		writeError(w, r, apperr.E(apperr.ErrNotFound, "schema not found"))
		return
	}
	if err := h.repo.DeleteSchema(r.Context(), version); err != nil {
		writeError(w, r, err)
		return
	}
	h.reload(r)
	w.WriteHeader(http.StatusNoContent)
}
