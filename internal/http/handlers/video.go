package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// VideoHandler handles video listing, reads, deletes and reactions.
type VideoHandler struct {
	pages  PageBuilder
	videos VideoService
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(pages PageBuilder, videos VideoService) *VideoHandler {
	return &VideoHandler{
		pages:  pages,
		videos: videos,
	}
}

// Register registers the video routes with the API.
func (h *VideoHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listVideos",
		Method:      http.MethodGet,
		Path:        "/api/v1/videos",
		Summary:     "List videos",
		Description: "Filters, sorts, paginates and projects the video catalog",
		Tags:        []string{"Videos"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getVideo",
		Method:      http.MethodGet,
		Path:        "/api/v1/videos/{id}",
		Summary:     "Get video",
		Description: "Returns a video and counts one view",
		Tags:        []string{"Videos"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteVideo",
		Method:        http.MethodDelete,
		Path:          "/api/v1/videos/{id}",
		Summary:       "Delete video",
		Description:   "Deletes a video owned by the caller along with its media",
		Tags:          []string{"Videos"},
		DefaultStatus: http.StatusNoContent,
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "likeVideo",
		Method:      http.MethodPost,
		Path:        "/api/v1/videos/{id}/like",
		Summary:     "Toggle like",
		Description: "Likes the video, or removes the caller's like if already held",
		Tags:        []string{"Videos"},
	}, h.Like)

	huma.Register(api, huma.Operation{
		OperationID: "dislikeVideo",
		Method:      http.MethodPost,
		Path:        "/api/v1/videos/{id}/dislike",
		Summary:     "Toggle dislike",
		Description: "Dislikes the video, or removes the caller's dislike if already held",
		Tags:        []string{"Videos"},
	}, h.Dislike)

	huma.Register(api, huma.Operation{
		OperationID: "listVideoReactions",
		Method:      http.MethodGet,
		Path:        "/api/v1/videos/{id}/reactions",
		Summary:     "List reactions",
		Description: "Returns the user ids that like and dislike the video",
		Tags:        []string{"Videos"},
	}, h.Reactions)
}

// ListVideosInput documents the list parameters. They are parsed from the
// raw query string so repeated and malformed values reach the query parser
// untouched.
type ListVideosInput struct {
	Tags       string `query:"tags" doc:"Comma-separated tags; matches any" example:"Music,Gaming"`
	Search     string `query:"search" doc:"Case-insensitive substring of title or description"`
	DateRange  string `query:"dateRange" doc:"start,end as RFC 3339 or YYYY-MM-DD; either side optional" example:"2024-01-01,2024-01-31"`
	ViewsRange string `query:"viewsRange" doc:"min,max inclusive; either side optional" example:"1000,"`
	Sort       string `query:"sort" doc:"popular, newest, oldest, mostLiked, leastLiked or [-]field list" example:"popular"`
	Fields     string `query:"fields" doc:"Comma-separated projection; id is always included" example:"title,views"`
	Page       string `query:"page" doc:"1-indexed page number"`
	Limit      string `query:"limit" doc:"Items per page, 1 to 100"`

	values url.Values
}

// Resolve captures the raw query string.
func (i *ListVideosInput) Resolve(ctx huma.Context) []error {
	u := ctx.URL()
	i.values = u.Query()
	return nil
}

// ListVideosOutput is the output for listing videos.
type ListVideosOutput struct {
	Body VideoPageResponse
}

// List returns one page of videos.
func (h *VideoHandler) List(ctx context.Context, input *ListVideosInput) (*ListVideosOutput, error) {
	page, err := h.pages.BuildPage(ctx, input.values)
	if err != nil {
		return nil, queryError(err)
	}
	return &ListVideosOutput{Body: VideoPageFrom(page)}, nil
}

// VideoIDInput identifies a video.
type VideoIDInput struct {
	ID string `path:"id" doc:"Video ID (ULID)"`
}

// VideoOutput is a single projected video.
type VideoOutput struct {
	Body map[string]any
}

// Get returns a video and counts the view.
func (h *VideoHandler) Get(ctx context.Context, input *VideoIDInput) (*VideoOutput, error) {
	id, err := parseID(input.ID, "video")
	if err != nil {
		return nil, err
	}
	video, err := h.videos.View(ctx, id)
	if err != nil {
		return nil, catalogError(err, "failed to get video")
	}
	return &VideoOutput{Body: VideoFromModel(video)}, nil
}

// CallerVideoInput identifies a video and the calling user.
type CallerVideoInput struct {
	ID     string `path:"id" doc:"Video ID (ULID)"`
	UserID string `header:"X-User-ID" doc:"Caller identity set by the auth gateway"`
}

// DeleteVideoOutput is empty; success is 204.
type DeleteVideoOutput struct{}

// Delete removes a video owned by the caller.
func (h *VideoHandler) Delete(ctx context.Context, input *CallerVideoInput) (*DeleteVideoOutput, error) {
	id, err := parseID(input.ID, "video")
	if err != nil {
		return nil, err
	}
	if err := h.videos.Delete(ctx, id, input.UserID); err != nil {
		return nil, catalogError(err, "failed to delete video")
	}
	return &DeleteVideoOutput{}, nil
}

// ReactionOutput is the caller's reaction state after a toggle.
type ReactionOutput struct {
	Body models.ReactionState
}

// Like toggles the caller's like.
func (h *VideoHandler) Like(ctx context.Context, input *CallerVideoInput) (*ReactionOutput, error) {
	return h.react(ctx, input, models.ReactionLike)
}

// Dislike toggles the caller's dislike.
func (h *VideoHandler) Dislike(ctx context.Context, input *CallerVideoInput) (*ReactionOutput, error) {
	return h.react(ctx, input, models.ReactionDislike)
}

func (h *VideoHandler) react(ctx context.Context, input *CallerVideoInput, kind models.ReactionKind) (*ReactionOutput, error) {
	id, err := parseID(input.ID, "video")
	if err != nil {
		return nil, err
	}
	if input.UserID == "" {
		return nil, catalogError(models.ErrUserIDRequired, "")
	}
	state, err := h.videos.React(ctx, id, input.UserID, kind)
	if err != nil {
		return nil, catalogError(err, "failed to update reaction")
	}
	return &ReactionOutput{Body: *state}, nil
}

// ReactionsOutput is the output for listing reactions.
type ReactionsOutput struct {
	Body ReactionsResponse
}

// Reactions lists the users holding each reaction. It does not count a view.
func (h *VideoHandler) Reactions(ctx context.Context, input *VideoIDInput) (*ReactionsOutput, error) {
	id, err := parseID(input.ID, "video")
	if err != nil {
		return nil, err
	}
	likes, dislikes, err := h.videos.Reactions(ctx, id)
	if err != nil {
		return nil, catalogError(err, "failed to list reactions")
	}
	if likes == nil {
		likes = []string{}
	}
	if dislikes == nil {
		dislikes = []string{}
	}
	return &ReactionsOutput{Body: ReactionsResponse{Likes: likes, Dislikes: dislikes}}, nil
}
