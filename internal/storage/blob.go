package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
)

// ErrBlobNotFound is returned by Get when the key does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidKey is returned for keys that are empty or not in canonical form.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore persists opaque binary objects by key.
type BlobStore interface {
	// Put stores size bytes read from r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get opens the object stored under key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// VideoKey returns the blob key of a video's normalized MP4.
func VideoKey(channelID, videoID string) string {
	return path.Join("videos", channelID, videoID+".mp4")
}

// ThumbnailKey returns the blob key of a video's poster image.
func ThumbnailKey(channelID, videoID string) string {
	return path.Join("thumbnails", channelID, videoID+".jpg")
}

// ValidateKey checks that key is a clean, relative, slash-separated path.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key || key == "." || strings.HasPrefix(key, "../") || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// New builds the BlobStore selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "", "fs":
		store, err := NewFSBlobStore(cfg.BlobPath())
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Info("using filesystem blob store", slog.String("root", store.Root()))
		}
		return store, nil
	case "s3":
		return NewS3BlobStore(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
