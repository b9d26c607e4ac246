package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/garnizeh/recruiter/internal/apperr"
)

// Azure stores blobs in an Azure Storage account. SAS URLs need the account
// key, so the client is built from a connection string.
type Azure struct {
	client *azblob.Client
	now    func() time.Time
}

// NewAzure connects to the account and creates the given containers when missing.
func NewAzure(ctx context.Context, connectionString string, containers ...string) (*Azure, error) {
	if connectionString == "" {
		return nil, errors.New("azure storage connection string is required")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	a := &Azure{client: client, now: time.Now}
	for _, c := range containers {
		if c == "" {
			continue
		}
		if _, err := client.CreateContainer(ctx, c, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("create container %s: %w", c, mapAzureError(err))
		}
	}
	logger.Info("storage: azure backend ready", slog.String("account", client.URL()))
	return a, nil
}

// mapAzureError converts SDK errors into apperr kinds.
func mapAzureError(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return apperr.E(apperr.ErrNotFound, "blob not found")
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return apperr.E(apperr.ErrNotFound, "blob not found")
		case http.StatusForbidden, http.StatusUnauthorized:
			return apperr.E(apperr.ErrUnauthorized, "storage access denied")
		}
	}
	return err
}

func (a *Azure) blobClient(container, path string) *blob.Client {
	return a.client.ServiceClient().NewContainerClient(container).NewBlobClient(path)
}

func (a *Azure) Upload(ctx context.Context, container, path string, r io.Reader, contentType string) (string, error) {
	if err := checkPath(container, path); err != nil {
		return "", err
	}
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := a.client.UploadStream(ctx, container, path, r, opts); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", container, path, mapAzureError(err))
	}
	logger.Debug("storage: uploaded", slog.String("container", container), slog.String("path", path))
	return a.blobClient(container, path).URL(), nil
}

func (a *Azure) Download(ctx context.Context, container, path string) (io.ReadCloser, *BlobInfo, error) {
	resp, err := a.client.DownloadStream(ctx, container, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("download %s/%s: %w", container, path, mapAzureError(err))
	}
	info := &BlobInfo{Container: container, Path: path}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		info.ContentType = *resp.ContentType
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return resp.Body, info, nil
}

func (a *Azure) DeleteIfExists(ctx context.Context, container, path string) (bool, error) {
	_, err := a.client.DeleteBlob(ctx, container, path, nil)
	if err != nil {
		mapped := mapAzureError(err)
		if errors.Is(mapped, apperr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete %s/%s: %w", container, path, mapped)
	}
	return true, nil
}

func (a *Azure) Exists(ctx context.Context, container, path string) (bool, error) {
	_, err := a.Metadata(ctx, container, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (a *Azure) Metadata(ctx context.Context, container, path string) (*BlobInfo, error) {
	props, err := a.blobClient(container, path).GetProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("properties %s/%s: %w", container, path, mapAzureError(err))
	}
	info := &BlobInfo{Container: container, Path: path}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		info.ContentType = *props.ContentType
	}
	if props.LastModified != nil {
		info.LastModified = *props.LastModified
	}
	return info, nil
}

func (a *Azure) UploadSASURL(ctx context.Context, container, path string) (*SignedURL, error) {
	return a.sasURL(container, path, sas.BlobPermissions{Write: true, Create: true}, UploadSASTTL)
}

func (a *Azure) DownloadSASURL(ctx context.Context, container, path string) (*SignedURL, error) {
	return a.sasURL(container, path, sas.BlobPermissions{Read: true}, DownloadSASTTL)
}

func (a *Azure) sasURL(container, path string, perms sas.BlobPermissions, ttl time.Duration) (*SignedURL, error) {
	if err := checkPath(container, path); err != nil {
		return nil, err
	}
	expiry := a.now().UTC().Add(ttl)
	u, err := a.blobClient(container, path).GetSASURL(perms, expiry, nil)
	if err != nil {
		return nil, fmt.Errorf("sas url: %w", err)
	}
	return &SignedURL{URL: u, ExpiresAt: expiry}, nil
}
