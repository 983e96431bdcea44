package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const maxUploadMemory = 32 << 20 // bytes buffered before multipart spills to disk

// saveUploadedFile copies the named multipart part to a temp file and returns
// its path. A missing part is not an error: it returns ("", false, nil) so
// callers decide whether the field was required. The caller owns the temp
// file; the media uploader removes it after the store call.
func saveUploadedFile(r *http.Request, field string) (string, bool, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read multipart field %s: %w", field, err)
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	tmp, err := os.CreateTemp("", "vidtube-upload-*"+ext)
	if err != nil {
		return "", false, fmt.Errorf("create temp upload: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", false, fmt.Errorf("buffer upload %s: %w", field, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", false, fmt.Errorf("close temp upload: %w", err)
	}

	return tmp.Name(), true, nil
}
