package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/videotube/accounts/internal/storage"
)

const (
	formFieldAvatar     = "avatar"
	formFieldCoverImage = "coverImage"
	folderAvatars       = "avatars"
	folderCovers        = "covers"
	maxMultipartMemory  = 8 << 20
)

// MediaStore hosts uploaded images under public URLs.
type MediaStore interface {
	Upload(ctx context.Context, folder string, r io.Reader, size int64, contentType string) (string, error)
	Discard(ctx context.Context, url string) error
}

var errMediaDisabled = errors.New("media uploads are not configured")

func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	return r.ParseMultipartForm(maxMultipartMemory)
}

// uploadFormFile uploads the named form file. ok is false when the form has no such file.
func uploadFormFile(r *http.Request, media MediaStore, field, folder string) (url string, ok bool, err error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer file.Close()

	if media == nil {
		return "", false, errMediaDisabled
	}
	url, err = media.Upload(r.Context(), folder, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

// discardUploads removes images uploaded for a request that then failed.
func discardUploads(r *http.Request, media MediaStore, logger *slog.Logger, urls ...string) {
	if media == nil {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := media.Discard(ctx, url); err != nil {
			logger.WarnContext(ctx, "discard orphaned upload", slog.String("url", url), slog.Any("error", err))
		}
	}
}

func writeUploadError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "only jpeg, png, gif and webp images are accepted")
	case errors.Is(err, errMediaDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.ErrorContext(r.Context(), "media upload failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to upload file")
	}
}
