package ingest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// Kind classifies an ingest failure.
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindTranscode     Kind = "TranscodeError"
	KindPersistence   Kind = "PersistenceError"
	KindPartialCommit Kind = "PartialCommitError"
	KindCanceled      Kind = "CanceledError"
)

// StatusClientClosedRequest is reported when the uploader went away.
const StatusClientClosedRequest = 499

// Error is returned by Pipeline.Ingest for every failure.
type Error struct {
	Kind  Kind
	Stage Stage
	// VideoID is set for PartialCommitError (the visible record) and for
	// duplicate rejections (the existing record).
	VideoID string
	Message string
	// Stderr is the encoder's trailing output for TranscodeError.
	Stderr   string
	TooLarge bool
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether submitting the same upload again is safe.
// A partial commit left a visible record, so a retry may duplicate it.
func (e *Error) Retryable() bool {
	return e.Kind != KindPartialCommit
}

// HTTPStatus maps the error to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		switch {
		case e.TooLarge:
			return http.StatusRequestEntityTooLarge
		case errors.Is(e.Err, models.ErrNotChannelOwner):
			return http.StatusForbidden
		case errors.Is(e.Err, models.ErrChannelNotFound):
			return http.StatusNotFound
		default:
			return http.StatusBadRequest
		}
	case KindTranscode:
		return http.StatusUnprocessableEntity
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" if it is not an ingest error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

func validationError(stage Stage, msg string, err error) *Error {
	return &Error{Kind: KindValidation, Stage: stage, Message: msg, Err: err}
}

func persistenceError(stage Stage, msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Stage: stage, Message: msg, Err: err}
}

func canceledError(stage Stage, err error) *Error {
	return &Error{Kind: KindCanceled, Stage: stage, Message: "upload canceled", Err: err}
}
