package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sanketb-14/Streamline-sub000/internal/http/middleware"
	"github.com/sanketb-14/Streamline-sub000/internal/ingest"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// Multipart field names of an upload.
const (
	FieldVideo       = "video"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTags        = "tags"
)

// multipartMemory is how much of a form is held in memory before parts
// spill to temporary files.
const multipartMemory = 8 << 20

// UploadHandler accepts video uploads.
type UploadHandler struct {
	ingester       Ingester
	maxRequestBody int64
	logger         *slog.Logger
}

// NewUploadHandler creates an upload handler. maxRequestBody caps the raw
// request body; the pipeline applies its own, smaller limit to the file.
func NewUploadHandler(ingester Ingester, maxRequestBody int64) *UploadHandler {
	return &UploadHandler{
		ingester:       ingester,
		maxRequestBody: maxRequestBody,
		logger:         slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *UploadHandler) WithLogger(logger *slog.Logger) *UploadHandler {
	h.logger = logger
	return h
}

// RegisterRoutes registers the upload route on the router. Multipart bodies
// are streamed by chi directly rather than decoded by huma.
func (h *UploadHandler) RegisterRoutes(router chi.Router) {
	router.Post("/api/v1/channels/{channelID}/videos", h.Upload)
}

// Upload runs one multipart upload through the ingest pipeline.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	channelID, err := models.ParseULID(chi.URLParam(r, "channelID"))
	if err != nil {
		h.reject(w, &ingest.Error{Kind: ingest.KindValidation, Stage: ingest.StageValidating, Message: "invalid channel ID format", Err: err})
		return
	}

	if h.maxRequestBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBody)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		h.reject(w, &ingest.Error{
			Kind:     ingest.KindValidation,
			Stage:    ingest.StageValidating,
			Message:  "failed to parse multipart form",
			TooLarge: errors.As(err, &mbe),
			Err:      err,
		})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(FieldVideo)
	if err != nil {
		h.reject(w, &ingest.Error{Kind: ingest.KindValidation, Stage: ingest.StageValidating, Message: "missing video file part", Err: err})
		return
	}
	defer file.Close()

	video, err := h.ingester.Ingest(r.Context(), ingest.Request{
		UploaderID: strings.TrimSpace(r.Header.Get(middleware.UserIDHeader)),
		ChannelID:  channelID,
		File: ingest.File{
			Filename:    header.Filename,
			ContentType: partContentType(header),
			Size:        header.Size,
			Body:        file,
		},
		Metadata: ingest.Metadata{
			Title:       r.FormValue(FieldTitle),
			Description: r.FormValue(FieldDescription),
			Tags:        formTags(r.MultipartForm),
		},
	})
	if err != nil {
		ie, ok := ingest.AsError(err)
		if !ok {
			ie = &ingest.Error{Kind: ingest.KindPersistence, Message: "upload failed", Err: err}
		}
		h.reject(w, ie)
		return
	}

	w.Header().Set("Location", "/api/v1/videos/"+video.ID.String())
	writeJSON(w, http.StatusCreated, VideoFromModel(video))
}

func (h *UploadHandler) reject(w http.ResponseWriter, e *ingest.Error) {
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("upload rejected",
			slog.String("kind", string(e.Kind)),
			slog.String("error", e.Error()),
		)
	}
	writeJSON(w, status, IngestErrorFrom(e))
}

func partContentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// formTags collects the repeated tags field, dropping blank entries.
func formTags(form *multipart.Form) []string {
	var tags []string
	for _, t := range form.Value[FieldTags] {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
