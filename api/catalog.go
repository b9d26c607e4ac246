package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/catalog"
	"github.com/garnizeh/recruiter/pkg/models"
)

// CatalogHandler serves prompts, interview configurations and questionnaire templates.
type CatalogHandler struct {
	svc *catalog.Service
}

func NewCatalogHandler(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// versioned pulls {name} and the optional ?version= from r.
func versioned(r *http.Request) (string, *int, error) {
	v, err := queryVersion(r)
	return mux.Vars(r)["name"], v, err
}

func (h *CatalogHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	p := page(r)
	items, total, err := h.svc.ListPrompts(r.Context(), r.URL.Query().Get("category"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total, p)
}

func (h *CatalogHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	var in models.Prompt
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.CreatePrompt(r.Context(), &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusCreated)
}

func (h *CatalogHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	name, version, err := versioned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.GetPrompt(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *CatalogHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeletePrompt(r.Context(), name, version); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	p := page(r)
	items, total, err := h.svc.ListInterviewConfigurations(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total, p)
}

func (h *CatalogHandler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var in models.InterviewConfiguration
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.CreateInterviewConfiguration(r.Context(), &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusCreated)
}

func (h *CatalogHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	name, version, err := versioned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.GetInterviewConfiguration(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

// ConfigurationPrompts shows the prompt versions a configuration resolves to.
func (h *CatalogHandler) ConfigurationPrompts(w http.ResponseWriter, r *http.Request) {
	name, version, err := versioned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := h.svc.GetInterviewConfiguration(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.ResolvePrompts(r.Context(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *CatalogHandler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteInterviewConfiguration(r.Context(), name, version); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	p := page(r)
	items, total, err := h.svc.ListQuestionnaireTemplates(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total, p)
}

func (h *CatalogHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in models.QuestionnaireTemplate
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.CreateQuestionnaireTemplate(r.Context(), &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusCreated)
}

func (h *CatalogHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	name, version, err := versioned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.GetQuestionnaireTemplate(r.Context(), name, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *CatalogHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	name, version, err := nameVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteQuestionnaireTemplate(r.Context(), name, version); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
