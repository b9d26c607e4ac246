// Package storage stores blobs (CVs, pictures, interview transcripts and
// audio) in Azure Blob Storage or on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/garnizeh/recruiter/internal/config"
)

const (
	UploadSASTTL   = 20 * time.Minute
	DownloadSASTTL = 5 * time.Minute
)

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Container    string    `json:"container"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// SignedURL is a time-limited link to one blob.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Storage is implemented by every backend.
type Storage interface {
	// Upload writes the blob, replacing any previous content, and returns its URL.
	Upload(ctx context.Context, container, path string, r io.Reader, contentType string) (string, error)
	// Download returns ErrNotFound-kind errors for missing blobs.
	Download(ctx context.Context, container, path string) (io.ReadCloser, *BlobInfo, error)
	DeleteIfExists(ctx context.Context, container, path string) (bool, error)
	Exists(ctx context.Context, container, path string) (bool, error)
	Metadata(ctx context.Context, container, path string) (*BlobInfo, error)
	UploadSASURL(ctx context.Context, container, path string) (*SignedURL, error)
	DownloadSASURL(ctx context.Context, container, path string) (*SignedURL, error)
}

// package-level logger for internal/storage; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by internal/storage. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "azure":
		return NewAzure(ctx, cfg.AzureConnection, cfg.CVContainer, cfg.InterviewContainer)
	case "local", "":
		return NewLocal(cfg.LocalRoot, cfg.LocalPublicURL, []byte(cfg.LocalSigningKey))
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
