// Package files stores user uploads (CVs and pictures) and turns uploaded CVs
// into structured profile sections in the background.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/cvparse"
	"github.com/garnizeh/recruiter/internal/jobs"
	"github.com/garnizeh/recruiter/internal/storage"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// File kinds.
const (
	KindCV      = "cv"
	KindPicture = "picture"
)

// DefaultMaxBytes caps uploads when the storage config sets no limit.
const DefaultMaxBytes = 10 << 20

var allowed = map[string]map[string]string{
	KindCV: {
		".pdf":  "application/pdf",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".txt":  "text/plain; charset=utf-8",
	},
	KindPicture: {
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
	},
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

// CVExtractor structures the plain text of a CV.
type CVExtractor interface {
	Extract(ctx context.Context, text, name string) (*models.CVExtraction, error)
}

// Actor is the authenticated caller of a file operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

type Service struct {
	repo      *repository.Repository
	store     storage.Storage
	profiles  *candidate.Service
	extractor CVExtractor
	queue     Enqueuer
	rec       ChangeRecorder
	logger    *slog.Logger
	container string
	maxBytes  int64
}

// NewService wires the file service. extractor may be nil, in which case
// uploaded CVs are stored but never parsed.
func NewService(repo *repository.Repository, store storage.Storage, profiles *candidate.Service, extractor CVExtractor, queue Enqueuer, rec ChangeRecorder, cfg config.StorageConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	s := &Service{
		repo:      repo,
		store:     store,
		profiles:  profiles,
		extractor: extractor,
		queue:     queue,
		rec:       rec,
		logger:    logger,
		container: cfg.CVContainer,
		maxBytes:  cfg.MaxUploadBytes,
	}
	if s.container == "" {
		s.container = "cvs"
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	return s
}

// UploadResult is a stored file and the URL the backend returned for it.
type UploadResult struct {
	File *models.File `json:"file"`
	URL  string       `json:"url"`
}

// Upload validates and stores one file owned by userID. size is the declared
// size and may be -1 when unknown; the body is still capped.
func (s *Service) Upload(ctx context.Context, userID, kind, filename string, r io.Reader, size int64) (*UploadResult, error) {
	types, ok := allowed[kind]
	if !ok {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("unknown file kind %q", kind))
	}
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
	contentType, ok := types[ext]
	if !ok {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("extension %q is not allowed for %s files", ext, kind))
	}
	if size > s.maxBytes {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	if len(data) == 0 {
		return nil, apperr.E(apperr.ErrInvalid, "file is empty")
	}

	var owner *models.UserProfile
	if kind == KindCV {
		if owner, err = s.profiles.GetProfile(ctx, userID); err != nil {
			return nil, err
		}
	}

	folder := path.Join("users", userID, kind)
	f := &models.File{
		ID:          uuid.NewString(),
		OwnerUserID: userID,
		Kind:        kind,
		Container:   s.container,
		FolderPath:  folder,
		Extension:   ext,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}
	f.FilePath = path.Join(folder, uuid.NewString()+ext)

	url, err := s.store.Upload(ctx, f.Container, f.FilePath, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}
	if err := s.repo.File.CreateFile(ctx, f); err != nil {
		s.discardBlob(ctx, f)
		return nil, fmt.Errorf("create file: %w", err)
	}
	s.rec.Record(ctx, "File", f.ID, "files", false)

	if owner != nil {
		if err := s.attachCV(ctx, f, owner, url); err != nil {
			s.discardBlob(ctx, f)
			if derr := s.repo.File.SoftDeleteFile(ctx, f.ID); derr != nil {
				s.logger.Warn("files: orphaned row", slog.String("file_id", f.ID), slog.String("error", derr.Error()))
			} else {
				s.rec.Record(ctx, "File", f.ID, "files", true)
			}
			return nil, err
		}
	}
	s.logger.Info("files: stored", slog.String("file_id", f.ID), slog.String("kind", kind), slog.Int64("size", f.SizeBytes))
	return &UploadResult{File: f, URL: url}, nil
}

// discardBlob removes the blob of an upload that failed after storing it.
func (s *Service) discardBlob(ctx context.Context, f *models.File) {
	if _, err := s.store.DeleteIfExists(ctx, f.Container, f.FilePath); err != nil {
		s.logger.Warn("files: orphaned blob", slog.String("path", f.FilePath), slog.String("error", err.Error()))
	}
}

// attachCV queues the CV for extraction and points the owner's profile and
// candidate record at it. A queued job for a file that is later discarded
// fails permanently in ProcessCV.
func (s *Service) attachCV(ctx context.Context, f *models.File, p *models.UserProfile, url string) error {
	if s.extractor != nil && s.queue != nil {
		if err := s.queue.Enqueue(ctx, jobs.TypeCVProcess, CVJob{FileID: f.ID}); err != nil {
			return fmt.Errorf("enqueue cv processing: %w", err)
		}
	}
	if err := s.profiles.SetResumeURL(ctx, p.ID, url); err != nil {
		return err
	}
	c, err := s.profiles.CandidateForUser(ctx, f.OwnerUserID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	return s.profiles.SetCandidateCV(ctx, c.ID, &f.ID)
}

// Get returns a live file the actor may access.
func (s *Service) Get(ctx context.Context, id string, who Actor) (*models.File, error) {
	f, err := s.repo.File.GetFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if f == nil || f.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, "file not found")
	}
	if f.OwnerUserID != who.UserID && !who.IsAdmin {
		return nil, apperr.E(apperr.ErrForbidden, "file belongs to another user")
	}
	return f, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.File, error) {
	items, err := s.repo.File.ListFilesByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return items, nil
}

// Download opens the blob behind a file. The caller closes the reader.
func (s *Service) Download(ctx context.Context, id string, who Actor) (io.ReadCloser, *models.File, error) {
	f, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Download(ctx, f.Container, f.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("download file: %w", err)
	}
	return rc, f, nil
}

// Delete removes the blob and soft-deletes the row.
func (s *Service) Delete(ctx context.Context, id string, who Actor) error {
	f, err := s.Get(ctx, id, who)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteIfExists(ctx, f.Container, f.FilePath); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.repo.File.SoftDeleteFile(ctx, f.ID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	s.rec.Record(ctx, "File", f.ID, "files", true)
	return nil
}

// SAS kinds.
const (
	SASUpload   = "upload"
	SASDownload = "download"
)

// SASURL issues a time-limited link to the file's blob.
func (s *Service) SASURL(ctx context.Context, id string, who Actor, kind string) (*storage.SignedURL, error) {
	f, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	switch kind {
	case SASUpload:
		return s.store.UploadSASURL(ctx, f.Container, f.FilePath)
	case SASDownload, "":
		return s.store.DownloadSASURL(ctx, f.Container, f.FilePath)
	default:
		return nil, apperr.E(apperr.ErrInvalid, fmt.Sprintf("unknown sas kind %q", kind))
	}
}

// CVJob is the payload of a cv.process job.
type CVJob struct {
	FileID string `json:"file_id"`
}

// ProcessCV is the cv.process job handler. Failures that a retry cannot fix
// are marked permanent.
func (s *Service) ProcessCV(ctx context.Context, j *jobs.Job) error {
	if s.extractor == nil {
		return jobs.Permanent(errors.New("cv extraction is disabled"))
	}
	var p CVJob
	if err := j.Decode(&p); err != nil {
		return jobs.Permanent(err)
	}

	f, err := s.repo.File.GetFile(ctx, p.FileID)
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	if f == nil || f.IsDeleted || f.Kind != KindCV {
		return jobs.Permanent(apperr.E(apperr.ErrNotFound, "cv file "+p.FileID+" not found"))
	}
	profile, err := s.profiles.GetProfile(ctx, f.OwnerUserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return jobs.Permanent(err)
		}
		return err
	}

	rc, _, err := s.store.Download(ctx, f.Container, f.FilePath)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return jobs.Permanent(err)
		}
		return fmt.Errorf("download cv: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	rc.Close()
	if err != nil {
		return fmt.Errorf("read cv: %w", err)
	}

	text, err := cvparse.ExtractText(f.Extension, data)
	if err != nil {
		return jobs.Permanent(err)
	}
	cv, err := s.extractor.Extract(ctx, text, profile.Name)
	if err != nil {
		if errors.Is(err, cvparse.ErrSchemaMismatch) {
			return jobs.Permanent(err)
		}
		return err
	}
	res, err := s.profiles.ApplyExtractedCV(ctx, profile.ID, cv)
	if err != nil {
		return err
	}

	s.logger.Info("files: cv processed",
		slog.String("file_id", f.ID),
		slog.String("profile_id", profile.ID),
		slog.Int("skills", res.Skills),
		slog.Int("education", res.Education),
		slog.Int("experience", res.Experience),
		slog.Int("certifications", res.Certifications),
		slog.Int("awards", res.Awards),
		slog.Bool("profile_updated", res.ProfileUpdated),
	)
	return nil
}
