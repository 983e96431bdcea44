// Package media adapts the object store into the upload collaborator the
// account handlers talk to: local temp file in, public URL out, temp file
// removed no matter what.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/logging"
)

// ErrUploadFailed indicates the object store rejected or lost the upload.
var ErrUploadFailed = errors.New("media upload failed")

// ObjectStore is the slice of the storage client the uploader needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Remove(ctx context.Context, url string) error
}

// Uploader moves request-scoped temp files into the object store.
type Uploader struct {
	store ObjectStore
}

// NewUploader binds the uploader to an object store.
func NewUploader(store ObjectStore) *Uploader {
	if store == nil {
		panic("media: object store must not be nil")
	}
	return &Uploader{store: store}
}

// Upload streams the file at localPath into the object store and returns its
// public URL. The local file is removed unconditionally, success or failure.
// An empty path is a no-op returning an empty URL, so optional uploads
// (cover images) flow through the same call site.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.FromContext(ctx).Warn("remove upload temp file", "path", localPath, "error", err)
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %s", ErrUploadFailed, localPath, err)
	}
	defer f.Close()

	ext := filepath.Ext(localPath)
	key := fmt.Sprintf("media/%s%s", uuid.NewString(), ext)
	contentType := mime.TypeByExtension(ext)

	url, err := u.store.Put(ctx, key, f, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	return url, nil
}

// Delete removes a previously uploaded object. Blank URLs are ignored.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	return u.store.Remove(ctx, url)
}
