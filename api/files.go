package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/files"
	"github.com/garnizeh/recruiter/internal/storage"
	"github.com/garnizeh/recruiter/pkg/models"
)

// FileHandler serves uploads, downloads and signed links of user files.
type FileHandler struct {
	svc      *files.Service
	local    *storage.Local
	maxBytes int64
}

// NewFileHandler builds the handler. local is nil unless blobs live on the
// local filesystem, in which case signed links are served by LocalGet and LocalPut.
func NewFileHandler(svc *files.Service, local *storage.Local, maxBytes int64) *FileHandler {
	if maxBytes <= 0 {
		maxBytes = files.DefaultMaxBytes
	}
	return &FileHandler{svc: svc, local: local, maxBytes: maxBytes}
}

func actor(r *http.Request) files.Actor {
	c := caller(r)
	return files.Actor{UserID: c.UserID, IsAdmin: c.HasRole(models.RoleAdmin, models.RoleRecruiter)}
}

// Upload takes a multipart form with a "file" part and a "kind" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, errorResponse{Error: "file too large"}, http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, apperr.E(apperr.ErrInvalid, "invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.E(apperr.ErrInvalid, "file is required"))
		return
	}
	defer f.Close()

	kind := r.FormValue("kind")
	if kind == "" {
		kind = files.KindCV
	}
	res, err := h.svc.Upload(r.Context(), caller(r).UserID, kind, hdr.Filename, f, hdr.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusCreated)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.File{}
	}
	writeJSON(w, items, http.StatusOK)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	rc, f, err := h.svc.Download(r.Context(), mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.ID+f.Extension+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("stream file", slog.String("file_id", f.ID), slog.String("error", err.Error()))
	}
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"], actor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) SAS(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.SASURL(r.Context(), mux.Vars(r)["id"], actor(r), r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, u, http.StatusOK)
}

// LocalGet serves a blob behind a signed local link.
func (h *FileHandler) LocalGet(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		writeError(w, r, apperr.E(apperr.ErrNotFound, "not found"))
		return
	}
	g, err := h.local.VerifyToken(mux.Vars(r)["token"], storage.OpRead)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rc, info, err := h.local.Download(r.Context(), g.Container, g.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("stream local blob", slog.String("path", g.Path), slog.String("error", err.Error()))
	}
}

// LocalPut writes the request body to the blob of a signed upload link.
func (h *FileHandler) LocalPut(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		writeError(w, r, apperr.E(apperr.ErrNotFound, "not found"))
		return
	}
	g, err := h.local.VerifyToken(mux.Vars(r)["token"], storage.OpWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	if _, err := h.local.Upload(r.Context(), g.Container, g.Path, body, r.Header.Get("Content-Type")); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, errorResponse{Error: "file too large"}, http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
