package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/recruiter/internal/apperr"
)

const (
	OpRead  = "read"
	OpWrite = "write"

	// LocalRoutePrefix is where the files API serves signed local links.
	LocalRoutePrefix = "/v1/files/local/"
)

// Local keeps blobs under root/<container>/<path>. The content type is kept
// in a sidecar file next to the blob.
type Local struct {
	root      string
	publicURL string
	key       []byte
	now       func() time.Time
}

func NewLocal(root, publicURL string, signingKey []byte) (*Local, error) {
	if root == "" {
		return nil, errors.New("local storage root is required")
	}
	if len(signingKey) == 0 {
		return nil, errors.New("local storage signing key is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root, publicURL: strings.TrimRight(publicURL, "/"), key: signingKey, now: time.Now}, nil
}

// checkPath rejects names that could escape the container.
func checkPath(container, p string) error {
	if container == "" || strings.ContainsAny(container, `/\`) || container == "." || container == ".." {
		return apperr.E(apperr.ErrInvalid, fmt.Sprintf("invalid container %q", container))
	}
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return apperr.E(apperr.ErrInvalid, fmt.Sprintf("invalid blob path %q", p))
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return apperr.E(apperr.ErrInvalid, fmt.Sprintf("invalid blob path %q", p))
		}
	}
	return nil
}

func (l *Local) file(container, p string) (string, error) {
	if err := checkPath(container, p); err != nil {
		return "", err
	}
	return filepath.Join(l.root, container, filepath.FromSlash(p)), nil
}

func (l *Local) Upload(ctx context.Context, container, p string, r io.Reader, contentType string) (string, error) {
	name, err := l.file(container, p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(name), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(p))
	}
	if err := os.WriteFile(name+".meta", []byte(contentType), 0o644); err != nil {
		return "", fmt.Errorf("write blob metadata: %w", err)
	}
	return "local://" + container + "/" + p, nil
}

func (l *Local) Download(ctx context.Context, container, p string) (io.ReadCloser, *BlobInfo, error) {
	info, err := l.Metadata(ctx, container, p)
	if err != nil {
		return nil, nil, err
	}
	name, _ := l.file(container, p)
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, mapFSError(err)
	}
	return f, info, nil
}

func (l *Local) DeleteIfExists(ctx context.Context, container, p string) (bool, error) {
	name, err := l.file(container, p)
	if err != nil {
		return false, err
	}
	if err := os.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(name + ".meta")
	return true, nil
}

func (l *Local) Exists(ctx context.Context, container, p string) (bool, error) {
	_, err := l.Metadata(ctx, container, p)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (l *Local) Metadata(ctx context.Context, container, p string) (*BlobInfo, error) {
	name, err := l.file(container, p)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(name)
	if err != nil {
		return nil, mapFSError(err)
	}
	info := &BlobInfo{Container: container, Path: p, Size: st.Size(), LastModified: st.ModTime().UTC()}
	if ct, err := os.ReadFile(name + ".meta"); err == nil {
		info.ContentType = string(ct)
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	return info, nil
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.E(apperr.ErrNotFound, "blob not found")
	}
	if errors.Is(err, fs.ErrPermission) {
		return apperr.E(apperr.ErrUnauthorized, "storage access denied")
	}
	return err
}

// sasClaims are carried by local signed links.
type sasClaims struct {
	Container string `json:"c"`
	Path      string `json:"p"`
	Op        string `json:"op"`
	jwt.RegisteredClaims
}

func (l *Local) UploadSASURL(ctx context.Context, container, p string) (*SignedURL, error) {
	return l.sign(container, p, OpWrite, UploadSASTTL)
}

func (l *Local) DownloadSASURL(ctx context.Context, container, p string) (*SignedURL, error) {
	return l.sign(container, p, OpRead, DownloadSASTTL)
}

func (l *Local) sign(container, p, op string, ttl time.Duration) (*SignedURL, error) {
	if err := checkPath(container, p); err != nil {
		return nil, err
	}
	exp := l.now().Add(ttl).UTC().Truncate(time.Second)
	claims := sasClaims{
		Container: container,
		Path:      p,
		Op:        op,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(l.now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.key)
	if err != nil {
		return nil, fmt.Errorf("sign local url: %w", err)
	}
	return &SignedURL{URL: l.publicURL + LocalRoutePrefix + url.PathEscape(tok), ExpiresAt: exp}, nil
}

// Grant is what a verified local link allows.
type Grant struct {
	Container string
	Path      string
	Op        string
}

// VerifyToken checks a local signed link token for operation op.
func (l *Local) VerifyToken(token, op string) (*Grant, error) {
	var claims sasClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return l.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(l.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.E(apperr.ErrUnauthorized, "link expired")
		}
		return nil, apperr.E(apperr.ErrUnauthorized, "invalid link")
	}
	if claims.Op != op {
		return nil, apperr.E(apperr.ErrForbidden, "link does not allow this operation")
	}
	if err := checkPath(claims.Container, claims.Path); err != nil {
		return nil, apperr.E(apperr.ErrUnauthorized, "invalid link")
	}
	return &Grant{Container: claims.Container, Path: claims.Path, Op: claims.Op}, nil
}
