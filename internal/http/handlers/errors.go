package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/query"
)

// catalogError maps service errors to API errors.
func catalogError(err error, msg string) error {
	var verr models.ErrValidation
	switch {
	case errors.Is(err, models.ErrVideoNotFound), errors.Is(err, models.ErrChannelNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, models.ErrNotChannelOwner):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, models.ErrUserIDRequired):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, models.ErrChannelExists), errors.Is(err, models.ErrConcurrentUpdate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, models.ErrInvalidReaction):
		return huma.Error400BadRequest(err.Error())
	case errors.As(err, &verr):
		return huma.Error400BadRequest("validation failed", &huma.ErrorDetail{
			Location: "body." + verr.Field,
			Message:  verr.Message,
		})
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

// queryError maps a rejected list parameter to a 400 naming it.
func queryError(err error) error {
	if ipe, ok := query.AsInvalidParameter(err); ok {
		return huma.Error400BadRequest("invalid query parameter", &huma.ErrorDetail{
			Location: "query." + ipe.Param,
			Message:  ipe.Reason,
			Value:    ipe.Value,
		})
	}
	return huma.Error500InternalServerError("failed to list videos", err)
}

func parseID(raw, what string) (models.ULID, error) {
	id, err := models.ParseULID(raw)
	if err != nil {
		return models.ULID{}, huma.Error400BadRequest("invalid "+what+" ID format", err)
	}
	return id, nil
}

// writeJSON writes v as a JSON response for the routes served by chi directly.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
