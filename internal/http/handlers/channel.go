package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// ChannelHandler handles channel creation and lookup.
type ChannelHandler struct {
	channels ChannelService
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(channels ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

// Register registers the channel routes with the API.
func (h *ChannelHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "createChannel",
		Method:        http.MethodPost,
		Path:          "/api/v1/channels",
		Summary:       "Create channel",
		Description:   "Creates the caller's channel. Each user owns at most one",
		Tags:          []string{"Channels"},
		DefaultStatus: http.StatusCreated,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "getChannel",
		Method:      http.MethodGet,
		Path:        "/api/v1/channels/{id}",
		Summary:     "Get channel",
		Description: "Returns a channel and its video ids in upload order",
		Tags:        []string{"Channels"},
	}, h.Get)
}

// CreateChannelRequest is the request body for creating a channel.
type CreateChannelRequest struct {
	Name        string `json:"name" doc:"Display name" minLength:"1" maxLength:"100"`
	Description string `json:"description,omitempty" doc:"Channel description" maxLength:"1000"`
}

// CreateChannelInput is the input for creating a channel.
type CreateChannelInput struct {
	UserID string `header:"X-User-ID" doc:"Caller identity set by the auth gateway"`
	Body   CreateChannelRequest
}

// ChannelOutput is a single channel.
type ChannelOutput struct {
	Body ChannelResponse
}

// Create creates a channel owned by the caller.
func (h *ChannelHandler) Create(ctx context.Context, input *CreateChannelInput) (*ChannelOutput, error) {
	channel, err := h.channels.Create(ctx, input.UserID, input.Body.Name, input.Body.Description)
	if err != nil {
		return nil, catalogError(err, "failed to create channel")
	}
	return &ChannelOutput{Body: ChannelFromModel(channel, nil)}, nil
}

// GetChannelInput is the input for fetching a channel.
type GetChannelInput struct {
	ID string `path:"id" doc:"Channel ID (ULID)"`
}

// Get returns a channel with its video ids.
func (h *ChannelHandler) Get(ctx context.Context, input *GetChannelInput) (*ChannelOutput, error) {
	id, err := parseID(input.ID, "channel")
	if err != nil {
		return nil, err
	}
	channel, videoIDs, err := h.channels.GetByID(ctx, id)
	if err != nil {
		return nil, catalogError(err, "failed to get channel")
	}
	return &ChannelOutput{Body: ChannelFromModel(channel, videoIDs)}, nil
}
