package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/sanketb-14/Streamline-sub000/internal/storage"
)

// seekableStore is implemented by blob stores that can hand out files, which
// lets the media route answer range requests.
type seekableStore interface {
	Open(key string) (*os.File, error)
}

// MediaHandler serves stored videos and thumbnails by blob key.
type MediaHandler struct {
	blobs  storage.BlobStore
	logger *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(blobs storage.BlobStore) *MediaHandler {
	return &MediaHandler{blobs: blobs, logger: slog.Default()}
}

// WithLogger sets the logger for the handler.
func (h *MediaHandler) WithLogger(logger *slog.Logger) *MediaHandler {
	h.logger = logger
	return h
}

// RegisterRoutes registers the media routes on the router.
func (h *MediaHandler) RegisterRoutes(router chi.Router) {
	router.Get("/media/*", h.Serve)
	router.Head("/media/*", h.Serve)
}

// Serve streams the blob named by the path after /media/.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := storage.ValidateKey(key); err != nil {
		http.Error(w, "invalid media key", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", mediaType(key))
	// Keys embed the video id, so content under a key never changes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if fs, ok := h.blobs.(seekableStore); ok {
		f, err := fs.Open(key)
		if err != nil {
			h.fail(w, r, key, err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.Error(w, "media not found", http.StatusNotFound)
			return
		}
		http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
		return
	}

	rc, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		h.fail(w, r, key, err)
		return
	}
	defer rc.Close()

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.DebugContext(r.Context(), "media copy interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (h *MediaHandler) fail(w http.ResponseWriter, r *http.Request, key string, err error) {
	if errors.Is(err, storage.ErrBlobNotFound) {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to open media",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	http.Error(w, "failed to read media", http.StatusInternalServerError)
}

func mediaType(key string) string {
	switch ext := path.Ext(key); ext {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
