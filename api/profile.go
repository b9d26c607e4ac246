package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/pkg/models"
)

// ProfileHandler serves the caller's profile and the recruiter view of profiles.
type ProfileHandler struct {
	profiles *candidate.Service
}

func NewProfileHandler(profiles *candidate.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.UserProfile
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.profiles.UpdateProfile(r.Context(), caller(r).UserID, &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

func (h *ProfileHandler) Full(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeFull(w, r, p.ID)
}

// FullByID is the recruiter view of any profile.
func (h *ProfileHandler) FullByID(w http.ResponseWriter, r *http.Request) {
	h.writeFull(w, r, mux.Vars(r)["id"])
}

func (h *ProfileHandler) writeFull(w http.ResponseWriter, r *http.Request, profileID string) {
	full, err := h.profiles.GetFullProfile(r.Context(), profileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, full, http.StatusOK)
}

// sectionHandler exposes one profile section of the caller.
type sectionHandler[T any] struct {
	profiles *candidate.Service
	sec      *candidate.Section[T]
}

func newSectionHandler[T any](profiles *candidate.Service, sec *candidate.Section[T]) *sectionHandler[T] {
	return &sectionHandler[T]{profiles: profiles, sec: sec}
}

// register mounts list, add, get, update and delete under prefix.
func (h *sectionHandler[T]) register(r *mux.Router, prefix string) {
	r.HandleFunc(prefix, h.list).Methods(http.MethodGet)
	r.HandleFunc(prefix, h.add).Methods(http.MethodPost)
	r.HandleFunc(prefix+"/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc(prefix+"/{id}", h.remove).Methods(http.MethodDelete)
}

func (h *sectionHandler[T]) profileID(r *http.Request) (string, error) {
	p, err := h.profiles.GetProfile(r.Context(), caller(r).UserID)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func (h *sectionHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	pid, err := h.profileID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.sec.List(r.Context(), pid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, items, http.StatusOK)
}

func (h *sectionHandler[T]) add(w http.ResponseWriter, r *http.Request) {
	pid, err := h.profileID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item := new(T)
	if err := decode(w, r, item); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.sec.Add(r.Context(), pid, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusCreated)
}

func (h *sectionHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	pid, err := h.profileID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.sec.Get(r.Context(), pid, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *sectionHandler[T]) update(w http.ResponseWriter, r *http.Request) {
	pid, err := h.profileID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item := new(T)
	if err := decode(w, r, item); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.sec.Update(r.Context(), pid, mux.Vars(r)["id"], item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *sectionHandler[T]) remove(w http.ResponseWriter, r *http.Request) {
	pid, err := h.profileID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.sec.Delete(r.Context(), pid, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
