package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/internal/interview"
	"github.com/garnizeh/recruiter/pkg/elevenlabs"
)

// maxWebhookBytes caps post-call payloads, which carry whole transcripts.
const maxWebhookBytes = 8 << 20

// SignatureValidator checks the signature header of a webhook payload.
type SignatureValidator interface {
	Validate(header string, payload []byte) error
}

// InterviewHandler serves interview sessions, transcripts and the voice webhook.
type InterviewHandler struct {
	svc       *interview.Service
	profiles  *candidate.Service
	validator SignatureValidator
}

// NewInterviewHandler builds the handler. A nil validator makes the webhook
// answer 503.
func NewInterviewHandler(svc *interview.Service, profiles *candidate.Service, validator SignatureValidator) *InterviewHandler {
	return &InterviewHandler{svc: svc, profiles: profiles, validator: validator}
}

func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	iv, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, iv, http.StatusOK)
}

func (h *InterviewHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTranscript(elevenlabs.WithUser(r.Context(), caller(r).UserID), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, t, http.StatusOK)
}

func (h *InterviewHandler) FetchAudio(w http.ResponseWriter, r *http.Request) {
	iv, err := h.svc.FetchAudio(elevenlabs.WithUser(r.Context(), caller(r).UserID), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, iv, http.StatusOK)
}

type startInterviewRequest struct {
	ApplicationID string `json:"application_id"`
	StepNumber    int    `json:"step_number"`
}

func (h *InterviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	uid := caller(r).UserID
	c, err := h.profiles.CandidateForUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.StartInterview(r.Context(), uid, c.ID, req.ApplicationID, req.StepNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

type bindRequest struct {
	ConversationID string `json:"conversation_id"`
}

// Bind attaches a conversation the browser opened to the interview.
func (h *InterviewHandler) Bind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.profiles.CandidateForUser(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	iv, err := h.svc.BindConversation(r.Context(), c.ID, mux.Vars(r)["id"], req.ConversationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, iv, http.StatusOK)
}

// Webhook receives post-call events. The signature covers the raw body.
func (h *InterviewHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.validator == nil {
		writeJSON(w, errorResponse{Error: "webhook secret is not configured"}, http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, r, apperr.E(apperr.ErrInvalid, "unreadable body"))
		return
	}
	if err := h.validator.Validate(r.Header.Get(elevenlabs.SignatureHeader), body); err != nil {
		logger.Warn("webhook signature rejected", slog.String("error", err.Error()))
		writeJSON(w, errorResponse{Error: "invalid signature"}, http.StatusUnauthorized)
		return
	}

	var ev elevenlabs.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, r, apperr.E(apperr.ErrInvalid, "invalid event"))
		return
	}
	res, err := h.svc.HandleWebhook(r.Context(), &ev)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("webhook for unknown conversation", slog.String("error", err.Error()))
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}
