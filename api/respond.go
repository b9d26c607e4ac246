package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/pkg/elevenlabs"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/ollama"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps err to a status code and writes {"error": msg}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	msg := apperr.Message(err)
	switch {
	case errors.Is(err, elevenlabs.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, err.Error()
	case errors.Is(err, elevenlabs.ErrNotConfigured), errors.Is(err, ollama.ErrCircuitOpen):
		status, msg = http.StatusServiceUnavailable, err.Error()
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, errorResponse{Error: msg}, status)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.E(apperr.ErrInvalid, "invalid request body")
	}
	return nil
}

// pathInt parses a positive integer path variable.
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || v < 1 {
		return 0, apperr.E(apperr.ErrInvalid, "invalid "+name)
	}
	return v, nil
}

// queryVersion parses the optional ?version= parameter.
func queryVersion(r *http.Request) (*int, error) {
	s := r.URL.Query().Get("version")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return nil, apperr.E(apperr.ErrInvalid, "invalid version")
	}
	return &v, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// page reads limit and offset query parameters.
func page(r *http.Request) models.Page {
	q := r.URL.Query()
	p := models.Page{Limit: 50}
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			p.Limit = v
		}
	}
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			p.Offset = v
		}
	}
	return p
}

type listResponse[T any] struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Items  []T   `json:"items"`
}

func writeList[T any](w http.ResponseWriter, items []T, total int64, p models.Page) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, listResponse[T]{Total: total, Limit: p.Limit, Offset: p.Offset, Items: items}, http.StatusOK)
}
