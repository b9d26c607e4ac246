package files_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/cvparse"
	dbpkg "github.com/garnizeh/recruiter/internal/db"
	"github.com/garnizeh/recruiter/internal/files"
	"github.com/garnizeh/recruiter/internal/jobs"
	"github.com/garnizeh/recruiter/internal/repository/sqlite"
	"github.com/garnizeh/recruiter/internal/storage"
	"github.com/garnizeh/recruiter/pkg/models"
)

type queued struct {
	typ     string
	payload json.RawMessage
}

type captureQueue struct {
	jobs []queued
	err  error
}

func (q *captureQueue) Enqueue(_ context.Context, typ string, payload any) error {
	if q.err != nil {
		return q.err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.jobs = append(q.jobs, queued{typ: typ, payload: b})
	return nil
}

type fakeExtractor struct {
	gotText string
	gotName string
	err     error
}

func (f *fakeExtractor) Extract(_ context.Context, text, name string) (*models.CVExtraction, error) {
	f.gotText, f.gotName = text, name
	if f.err != nil {
		return nil, f.err
	}
	return &models.CVExtraction{
		Name:   name,
		Bio:    "Backend engineer",
		Skills: []models.Skill{{SkillName: "Go"}, {SkillName: "SQL"}},
	}, nil
}

type fixture struct {
	svc      *files.Service
	profiles *candidate.Service
	queue    *captureQueue
	ext      *fakeExtractor
	root     string
}

func setup(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, nil).Repository()

	root := t.TempDir()
	store, err := storage.NewLocal(root, "http://localhost:8080", []byte("test-signing-key-0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	profiles := candidate.NewService(repo, nil, nil)
	f := &fixture{profiles: profiles, queue: &captureQueue{}, ext: &fakeExtractor{}, root: root}
	f.svc = files.NewService(repo, store, profiles, f.ext, f.queue, nil,
		config.StorageConfig{CVContainer: "cvs", MaxUploadBytes: maxBytes}, nil)
	return f
}

func (f *fixture) candidate(t *testing.T, userID string) *models.UserProfile {
	t.Helper()
	ctx := context.Background()
	p, err := f.profiles.GetOrCreateProfile(ctx, userID, "Ada Lovelace", userID+"@example.com", []string{models.RoleCandidate})
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}
	if _, err := f.profiles.EnsureCandidate(ctx, p.ID); err != nil {
		t.Fatalf("EnsureCandidate: %v", err)
	}
	return p
}

func TestUploadValidation(t *testing.T) {
	f := setup(t, 16)
	f.candidate(t, "u1")
	ctx := context.Background()

	tests := []struct {
		name, kind, filename, body string
		size                       int64
	}{
		{name: "unknown kind", kind: "video", filename: "a.mp4", body: "x", size: 1},
		{name: "bad extension", kind: files.KindCV, filename: "cv.exe", body: "x", size: 1},
		{name: "picture as cv", kind: files.KindCV, filename: "me.png", body: "x", size: 1},
		{name: "declared too large", kind: files.KindCV, filename: "cv.txt", body: "x", size: 17},
		{name: "body too large", kind: files.KindCV, filename: "cv.txt", body: strings.Repeat("x", 17), size: -1},
		{name: "empty", kind: files.KindCV, filename: "cv.txt", body: "", size: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, "u1", tt.kind, tt.filename, strings.NewReader(tt.body), tt.size)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Fatalf("expected invalid, got %v", err)
			}
		})
	}
	if len(f.queue.jobs) != 0 {
		t.Fatalf("rejected uploads must not queue jobs: %v", f.queue.jobs)
	}
}

// blobs counts the regular files under the local storage root.
func (f *fixture) blobs(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(f.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk storage root: %v", err)
	}
	return n
}

func TestUploadCVLeavesNothingBehindOnFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("owner without profile", func(t *testing.T) {
		f := setup(t, 0)
		_, err := f.svc.Upload(ctx, "admin", files.KindCV, "resume.txt", strings.NewReader("Jane Doe"), 8)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		items, err := f.svc.List(ctx, "admin")
		if err != nil || len(items) != 0 {
			t.Fatalf("expected no files listed, got %v, %v", items, err)
		}
		if n := f.blobs(t); n != 0 {
			t.Fatalf("expected no blobs stored, got %d", n)
		}
	})

	t.Run("queue failure after store", func(t *testing.T) {
		f := setup(t, 0)
		f.candidate(t, "u1")
		f.queue.err = errors.New("queue down")
		if _, err := f.svc.Upload(ctx, "u1", files.KindCV, "resume.txt", strings.NewReader("Jane Doe"), 8); err == nil {
			t.Fatalf("expected enqueue failure to fail the upload")
		}
		items, err := f.svc.List(ctx, "u1")
		if err != nil || len(items) != 0 {
			t.Fatalf("expected failed upload to be hidden, got %v, %v", items, err)
		}
		if n := f.blobs(t); n != 0 {
			t.Fatalf("expected blob to be removed, got %d", n)
		}
		if p, _ := f.profiles.GetProfile(ctx, "u1"); p.ResumeURL != "" {
			t.Fatalf("profile must not point at a discarded CV: %q", p.ResumeURL)
		}
	})

	t.Run("picture without profile", func(t *testing.T) {
		f := setup(t, 0)
		if _, err := f.svc.Upload(ctx, "admin", files.KindPicture, "me.png", strings.NewReader("png"), 3); err != nil {
			t.Fatalf("pictures do not need a profile: %v", err)
		}
	})
}

func TestUploadCVAndProcess(t *testing.T) {
	f := setup(t, 0)
	p := f.candidate(t, "u1")
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "u1", files.KindCV, "My CV.TXT", strings.NewReader("Ada Lovelace\nGo, SQL"), -1)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.File.Extension != ".txt" || !strings.HasPrefix(res.File.FilePath, "users/u1/cv/") {
		t.Fatalf("unexpected file row: %#v", res.File)
	}

	prof, _ := f.profiles.GetProfile(ctx, "u1")
	if prof.ResumeURL != res.URL {
		t.Fatalf("resume url = %q, want %q", prof.ResumeURL, res.URL)
	}
	c, _ := f.profiles.CandidateForUser(ctx, "u1")
	if c.CvFileID == nil || *c.CvFileID != res.File.ID {
		t.Fatalf("candidate cv not linked: %#v", c)
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].typ != jobs.TypeCVProcess {
		t.Fatalf("expected one cv.process job, got %v", f.queue.jobs)
	}

	job := &jobs.Job{ID: 1, Type: jobs.TypeCVProcess, Payload: f.queue.jobs[0].payload}
	if err := f.svc.ProcessCV(ctx, job); err != nil {
		t.Fatalf("ProcessCV: %v", err)
	}
	if !strings.Contains(f.ext.gotText, "Go, SQL") || f.ext.gotName != "Ada Lovelace" {
		t.Fatalf("extractor got text=%q name=%q", f.ext.gotText, f.ext.gotName)
	}
	skills, err := f.profiles.Skills.List(ctx, p.ID)
	if err != nil || len(skills) != 2 {
		t.Fatalf("skills after processing: %v, %v", skills, err)
	}
}

func TestProcessCVPermanentFailures(t *testing.T) {
	f := setup(t, 0)
	f.candidate(t, "u1")
	ctx := context.Background()

	missing := &jobs.Job{ID: 1, Type: jobs.TypeCVProcess, Payload: json.RawMessage(`{"file_id":"nope"}`)}
	if err := f.svc.ProcessCV(ctx, missing); !errors.Is(err, jobs.ErrPermanent) {
		t.Fatalf("missing file must be permanent, got %v", err)
	}

	res, err := f.svc.Upload(ctx, "u1", files.KindCV, "cv.txt", strings.NewReader("text"), 4)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	job := &jobs.Job{ID: 2, Type: jobs.TypeCVProcess, Payload: f.queue.jobs[0].payload}

	f.ext.err = cvparse.ErrSchemaMismatch
	if err := f.svc.ProcessCV(ctx, job); !errors.Is(err, jobs.ErrPermanent) {
		t.Fatalf("schema mismatch must be permanent, got %v", err)
	}
	f.ext.err = errors.New("ollama timeout")
	if err := f.svc.ProcessCV(ctx, job); err == nil || errors.Is(err, jobs.ErrPermanent) {
		t.Fatalf("transient failure must be retryable, got %v", err)
	}

	if err := f.svc.Delete(ctx, res.File.ID, files.Actor{UserID: "u1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.svc.ProcessCV(ctx, job); !errors.Is(err, jobs.ErrPermanent) {
		t.Fatalf("deleted file must be permanent, got %v", err)
	}
}

func TestAccessControl(t *testing.T) {
	f := setup(t, 0)
	f.candidate(t, "owner")
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, "owner", files.KindPicture, "me.png", strings.NewReader("png-bytes"), 9)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	id := res.File.ID
	if len(f.queue.jobs) != 0 {
		t.Fatalf("pictures are not processed: %v", f.queue.jobs)
	}

	if _, err := f.svc.Get(ctx, id, files.Actor{UserID: "stranger"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	rc, file, err := f.svc.Download(ctx, id, files.Actor{UserID: "admin", IsAdmin: true})
	if err != nil {
		t.Fatalf("admin Download: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "png-bytes" || file.ContentType != "image/png" {
		t.Fatalf("download: %q %q", body, file.ContentType)
	}

	signed, err := f.svc.SASURL(ctx, id, files.Actor{UserID: "owner"}, files.SASDownload)
	if err != nil || !strings.Contains(signed.URL, storage.LocalRoutePrefix) {
		t.Fatalf("SASURL: %#v, %v", signed, err)
	}
	if _, err := f.svc.SASURL(ctx, id, files.Actor{UserID: "owner"}, "delete"); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid sas kind, got %v", err)
	}

	listed, err := f.svc.List(ctx, "owner")
	if err != nil || len(listed) != 1 {
		t.Fatalf("List: %v, %v", listed, err)
	}

	if err := f.svc.Delete(ctx, id, files.Actor{UserID: "stranger"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("stranger delete: %v", err)
	}
	if err := f.svc.Delete(ctx, id, files.Actor{UserID: "owner"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, id, files.Actor{UserID: "owner"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
