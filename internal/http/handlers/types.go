// Package handlers provides HTTP API handlers for streamline.
package handlers

import (
	"context"
	"net/url"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/ingest"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/query"
)

// Ingester runs uploads through the ingest pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*models.Video, error)
}

// PageBuilder answers list queries.
type PageBuilder interface {
	BuildPage(ctx context.Context, values url.Values) (*query.Page, error)
}

// VideoService is the catalog surface used by the video endpoints.
type VideoService interface {
	View(ctx context.Context, id models.ULID) (*models.Video, error)
	Delete(ctx context.Context, id models.ULID, userID string) error
	React(ctx context.Context, id models.ULID, userID string, kind models.ReactionKind) (*models.ReactionState, error)
	Reactions(ctx context.Context, id models.ULID) (likes, dislikes []string, err error)
}

// ReactionsResponse lists who holds each reaction on a video. A user appears
// in at most one of the two lists.
type ReactionsResponse struct {
	Likes    []string `json:"likes"`
	Dislikes []string `json:"dislikes"`
}

// ChannelService is the catalog surface used by the channel endpoints.
type ChannelService interface {
	Create(ctx context.Context, ownerID, name, description string) (*models.Channel, error)
	GetByID(ctx context.Context, id models.ULID) (*models.Channel, []models.ULID, error)
}

// IngestErrorResponse is the body of a failed upload.
type IngestErrorResponse struct {
	Kind      ingest.Kind  `json:"kind"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	VideoID   string       `json:"video_id,omitempty"`
	Stage     ingest.Stage `json:"stage,omitempty"`
}

// IngestErrorFrom converts a pipeline error to a response body.
func IngestErrorFrom(e *ingest.Error) IngestErrorResponse {
	msg := e.Message
	if e.Err != nil && e.Kind == ingest.KindValidation {
		msg = msg + ": " + e.Err.Error()
	}
	return IngestErrorResponse{
		Kind:      e.Kind,
		Message:   msg,
		Retryable: e.Retryable(),
		VideoID:   e.VideoID,
		Stage:     e.Stage,
	}
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID          models.ULID   `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	VideoIDs    []models.ULID `json:"video_ids"`
}

// ChannelFromModel converts a model to a response.
func ChannelFromModel(c *models.Channel, videoIDs []models.ULID) ChannelResponse {
	if videoIDs == nil {
		videoIDs = []models.ULID{}
	}
	return ChannelResponse{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		VideoIDs:    videoIDs,
	}
}

// VideoPageResponse is one page of list results.
type VideoPageResponse struct {
	Items    []map[string]any `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// VideoPageFrom projects a query page for the response.
func VideoPageFrom(p *query.Page) VideoPageResponse {
	return VideoPageResponse{
		Items:    query.ProjectPage(p),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

// VideoFromModel renders a single video with the default projection.
func VideoFromModel(v *models.Video) map[string]any {
	return query.Project(v, query.DefaultFields())
}
