package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/videotube/accounts/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
	// URL is the default public address of key when no base URL is configured.
	URL(key string) string
}

var (
	// ErrUnsupportedType is returned for uploads that are not images.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrForeignURL is returned by Discard for URLs this Media did not hand out.
	ErrForeignURL = errors.New("url is not hosted by this media store")
)

// Media keys are unique per upload and never rewritten.
const mediaCacheControl = "public, max-age=31536000, immutable"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Media hosts user images on an ObjectStorage backend and hands back their public URLs.
type Media struct {
	backend ObjectStorage
	baseURL string
}

// NewMedia wraps backend. baseURL, when set, replaces the backend's own URL scheme
// (e.g. a CDN in front of the bucket).
func NewMedia(backend ObjectStorage, baseURL string) *Media {
	return &Media{backend: backend, baseURL: strings.TrimRight(baseURL, "/")}
}

// Open builds the backend selected by cfg.Provider. It returns nil for "none".
func Open(ctx context.Context, cfg config.StorageConfig) (*Media, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "memory":
		backend = NewMemory("media")
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewMedia(backend, cfg.PublicBaseURL), nil
}

// Upload stores an image under folder and returns its public URL.
func (m *Media) Upload(ctx context.Context, folder string, r io.Reader, size int64, contentType string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := imageExtensions[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	key := path.Join(folder, strings.ToLower(ulid.Make().String())+ext)
	if err := m.backend.Put(ctx, key, r, size, mediaType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return m.url(key), nil
}

// Discard deletes the object behind a URL returned by Upload. Discarding an
// object that is already gone succeeds.
func (m *Media) Discard(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, m.url(""))
	if !ok || key == "" {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	if err := m.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (m *Media) url(key string) string {
	if m.baseURL != "" {
		return m.baseURL + "/" + key
	}
	return m.backend.URL(key)
}
