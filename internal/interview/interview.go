// Package interview runs AI voice interviews: it hands out conversation
// tokens, stores transcripts and audio delivered by ElevenLabs, and passes
// finished interviews on to the scoring service.
package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/application"
	"github.com/garnizeh/recruiter/internal/jobs"
	"github.com/garnizeh/recruiter/internal/storage"
	"github.com/garnizeh/recruiter/pkg/elevenlabs"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// Voice is the part of the ElevenLabs client the service needs.
type Voice interface {
	CreateConversationToken(ctx context.Context, userID, agentID string) (*elevenlabs.ConversationToken, error)
	GetConversation(ctx context.Context, conversationID string) (*elevenlabs.Conversation, error)
	GetConversationAudio(ctx context.Context, conversationID string) ([]byte, string, error)
}

// ChangeRecorder receives every persisted change for cross-region sync.
type ChangeRecorder interface {
	Record(ctx context.Context, entityType, entityID, tableName string, deleted bool)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string, bool) {}

// Enqueuer persists background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any) error
}

type Service struct {
	repo      *repository.Repository
	apps      *application.Service
	voice     Voice
	store     storage.Storage
	queue     Enqueuer
	scorer    *Scorer
	rec       ChangeRecorder
	logger    *slog.Logger
	container string
	now       func() time.Time
}

// Options carries the optional collaborators of the service.
type Options struct {
	Container string
	Queue     Enqueuer
	Scorer    *Scorer
	Recorder  ChangeRecorder
	Logger    *slog.Logger
}

func NewService(repo *repository.Repository, apps *application.Service, voice Voice, store storage.Storage, opts Options) *Service {
	s := &Service{
		repo:      repo,
		apps:      apps,
		voice:     voice,
		store:     store,
		queue:     opts.Queue,
		scorer:    opts.Scorer,
		rec:       opts.Recorder,
		logger:    opts.Logger,
		container: opts.Container,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.container == "" {
		s.container = "interviews"
	}
	return s
}

// Get returns a live interview.
func (s *Service) Get(ctx context.Context, id string) (*models.Interview, error) {
	iv, err := s.repo.Interview.GetInterview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}
	if iv == nil || iv.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, "interview not found")
	}
	return iv, nil
}

// applicationID resolves the application an interview belongs to.
func (s *Service) applicationID(ctx context.Context, iv *models.Interview) (string, error) {
	as, err := s.repo.Application.GetApplicationStep(ctx, iv.JobApplicationStepID)
	if err != nil {
		return "", fmt.Errorf("get application step: %w", err)
	}
	if as == nil {
		return "", apperr.E(apperr.ErrNotFound, "application step not found")
	}
	return as.JobApplicationID, nil
}

func blobPath(appID, interviewID, name string) string {
	return path.Join("interviews", appID, interviewID, name)
}

// StartResult is what the browser needs to join the conversation.
type StartResult struct {
	Interview *models.Interview             `json:"interview"`
	Token     *elevenlabs.ConversationToken `json:"token"`
}

// StartInterview issues a conversation token for the interview step of a
// candidate's application and binds the conversation to the interview.
func (s *Service) StartInterview(ctx context.Context, userID, candidateID, appID string, stepNumber int) (*StartResult, error) {
	if _, err := s.apps.GetForCandidate(ctx, appID, candidateID); err != nil {
		return nil, err
	}
	as, err := s.apps.GetStep(ctx, appID, stepNumber)
	if err != nil {
		return nil, err
	}
	step, err := s.repo.Step.GetStep(ctx, as.JobPostStepName, as.JobPostStepVersion)
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	if step == nil || !step.IsInterview {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("step %d is not an interview", stepNumber))
	}

	iv, err := s.apps.EnsureInterview(ctx, as, step)
	if err != nil {
		return nil, err
	}
	if iv.CompletedAt != nil {
		return nil, apperr.E(apperr.ErrConflict, "interview already completed")
	}

	tok, err := s.voice.CreateConversationToken(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("conversation token: %w", err)
	}
	if tok.ConversationID != "" && tok.ConversationID != iv.ConversationID {
		iv.ConversationID = tok.ConversationID
		if err := s.repo.Interview.UpdateInterview(ctx, iv); err != nil {
			return nil, fmt.Errorf("bind conversation: %w", err)
		}
		s.rec.Record(ctx, "Interview", iv.ID, "interviews", false)
	}
	s.logger.Info("interview started",
		slog.String("interview_id", iv.ID),
		slog.String("conversation_id", iv.ConversationID),
		slog.String("agent_id", tok.AgentID))
	return &StartResult{Interview: iv, Token: tok}, nil
}

// BindConversation attaches a conversation id reported by the candidate's
// client when the token did not carry one.
func (s *Service) BindConversation(ctx context.Context, candidateID, interviewID, conversationID string) (*models.Interview, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperr.E(apperr.ErrInvalid, "conversation id is required")
	}
	iv, err := s.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	appID, err := s.applicationID(ctx, iv)
	if err != nil {
		return nil, err
	}
	if _, err := s.apps.GetForCandidate(ctx, appID, candidateID); err != nil {
		return nil, err
	}
	if iv.ConversationID == conversationID {
		return iv, nil
	}
	if iv.ConversationID != "" {
		return nil, apperr.E(apperr.ErrConflict, "interview is bound to another conversation")
	}
	iv.ConversationID = conversationID
	if err := s.repo.Interview.UpdateInterview(ctx, iv); err != nil {
		return nil, fmt.Errorf("bind conversation: %w", err)
	}
	s.rec.Record(ctx, "Interview", iv.ID, "interviews", false)
	return iv, nil
}

// Transcript is the stored transcript document.
type Transcript struct {
	InterviewID    string                       `json:"interview_id"`
	ConversationID string                       `json:"conversation_id"`
	Status         string                       `json:"status,omitempty"`
	DurationSecs   *float64                     `json:"duration_secs,omitempty"`
	Entries        []elevenlabs.TranscriptEntry `json:"transcript"`
	ReceivedAt     time.Time                    `json:"received_at"`
	// Live is set when the transcript was fetched from ElevenLabs instead of storage.
	Live bool `json:"live,omitempty"`
}

// WebhookResult is the body answered to ElevenLabs.
type WebhookResult struct {
	Status      string `json:"status"`
	InterviewID string `json:"interview_id,omitempty"`
}

// HandleWebhook stores the transcript of a finished call and queues scoring.
// Events other than post-call transcriptions are acknowledged and dropped.
func (s *Service) HandleWebhook(ctx context.Context, ev *elevenlabs.WebhookEvent) (*WebhookResult, error) {
	if ev.Type != elevenlabs.EventPostCallTranscript {
		s.logger.Info("interview: webhook ignored", slog.String("type", ev.Type))
		return &WebhookResult{Status: "rejected"}, nil
	}

	var data elevenlabs.PostCallData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, apperr.E(apperr.ErrInvalid, "malformed webhook data")
	}
	if data.ConversationID == "" {
		return nil, apperr.E(apperr.ErrInvalid, "data.conversation_id is required")
	}
	if len(data.Transcript) == 0 || string(data.Transcript) == "null" {
		return nil, apperr.E(apperr.ErrInvalid, "data.transcript is required")
	}

	iv, err := s.repo.Interview.GetInterviewByConversationID(ctx, data.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get interview: %w", err)
	}
	if iv == nil || iv.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, "no interview for conversation "+data.ConversationID)
	}
	appID, err := s.applicationID(ctx, iv)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := Transcript{
		InterviewID:    iv.ID,
		ConversationID: data.ConversationID,
		Status:         data.Status,
		Entries:        data.Entries(),
		ReceivedAt:     now,
	}
	if data.Metadata != nil && data.Metadata.CallDurationSecs > 0 {
		d := data.Metadata.CallDurationSecs
		doc.DurationSecs = &d
		iv.Duration = &d
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}

	p := blobPath(appID, iv.ID, "transcript.json")
	url, err := s.store.Upload(ctx, s.container, p, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, fmt.Errorf("upload transcript: %w", err)
	}

	iv.TranscriptURL = url
	iv.CompletedAt = &now
	if err := s.repo.Interview.UpdateInterview(ctx, iv); err != nil {
		return nil, fmt.Errorf("update interview: %w", err)
	}
	s.rec.Record(ctx, "Interview", iv.ID, "interviews", false)

	if s.queue != nil {
		job := ScoreRequest{InterviewID: iv.ID, Container: s.container, Path: p}
		if err := s.queue.Enqueue(ctx, jobs.TypeInterviewScore, job); err != nil {
			return nil, fmt.Errorf("enqueue scoring: %w", err)
		}
	}
	s.logger.Info("interview: transcript stored",
		slog.String("interview_id", iv.ID),
		slog.Int("turns", len(doc.Entries)))
	return &WebhookResult{Status: "accepted", InterviewID: iv.ID}, nil
}

// GetTranscript returns the stored transcript, or a live copy from ElevenLabs
// while the webhook has not arrived yet.
func (s *Service) GetTranscript(ctx context.Context, interviewID string) (*Transcript, error) {
	iv, err := s.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	if iv.TranscriptURL != "" {
		appID, err := s.applicationID(ctx, iv)
		if err != nil {
			return nil, err
		}
		rc, _, err := s.store.Download(ctx, s.container, blobPath(appID, iv.ID, "transcript.json"))
		switch {
		case err == nil:
			defer rc.Close()
			var doc Transcript
			if err := json.NewDecoder(rc).Decode(&doc); err != nil {
				return nil, fmt.Errorf("decode transcript: %w", err)
			}
			return &doc, nil
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, fmt.Errorf("download transcript: %w", err)
		}
		s.logger.Warn("interview: stored transcript missing", slog.String("interview_id", iv.ID))
	}

	if iv.ConversationID == "" {
		return nil, apperr.E(apperr.ErrNotFound, "interview has no transcript yet")
	}
	conv, err := s.voice.GetConversation(ctx, iv.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return &Transcript{
		InterviewID:    iv.ID,
		ConversationID: conv.ID,
		Status:         conv.Status,
		DurationSecs:   conv.DurationSecs,
		Entries:        conv.Transcript,
		ReceivedAt:     s.now(),
		Live:           true,
	}, nil
}

var audioExt = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/ogg":   "ogg",
	"audio/webm":  "webm",
}

// FetchAudio copies the call recording from ElevenLabs into storage.
func (s *Service) FetchAudio(ctx context.Context, interviewID string) (*models.Interview, error) {
	iv, err := s.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.ConversationID == "" {
		return nil, apperr.E(apperr.ErrConflict, "interview has no conversation")
	}
	appID, err := s.applicationID(ctx, iv)
	if err != nil {
		return nil, err
	}

	data, contentType, err := s.voice.GetConversationAudio(ctx, iv.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	ext, ok := audioExt[strings.TrimSpace(strings.ToLower(mediaType))]
	if !ok {
		ext = "mp3"
	}

	url, err := s.store.Upload(ctx, s.container, blobPath(appID, iv.ID, "audio."+ext), bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	iv.AudioURL = url
	if err := s.repo.Interview.UpdateInterview(ctx, iv); err != nil {
		return nil, fmt.Errorf("update interview: %w", err)
	}
	s.rec.Record(ctx, "Interview", iv.ID, "interviews", false)
	s.logger.Info("interview: audio stored", slog.String("interview_id", iv.ID), slog.Int("bytes", len(data)))
	return iv, nil
}

// ScoreJob is the interview.score job handler.
func (s *Service) ScoreJob(ctx context.Context, j *jobs.Job) error {
	var req ScoreRequest
	if err := j.Decode(&req); err != nil {
		return jobs.Permanent(err)
	}
	if req.InterviewID == "" || req.Path == "" {
		return jobs.Permanent(errors.New("score request needs interviewId and path"))
	}
	if s.scorer == nil {
		s.logger.Info("interview: scoring disabled", slog.String("interview_id", req.InterviewID))
		return nil
	}
	return s.scorer.Score(ctx, req)
}
