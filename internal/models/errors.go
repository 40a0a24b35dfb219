package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

var (
	// ErrVideoNotFound indicates the requested video does not exist.
	ErrVideoNotFound = errors.New("video not found")

	// ErrChannelNotFound indicates the referenced channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrChannelExists indicates the owner already has a channel.
	ErrChannelExists = errors.New("owner already has a channel")

	// ErrNotChannelOwner indicates the caller does not own the channel.
	ErrNotChannelOwner = errors.New("caller does not own the channel")

	// ErrConcurrentUpdate indicates an optimistic-concurrency check kept failing.
	ErrConcurrentUpdate = errors.New("concurrent update, retry later")

	// ErrInvalidReaction indicates an unknown reaction kind.
	ErrInvalidReaction = errors.New("invalid reaction: must be 'like' or 'dislike'")

	// ErrUserIDRequired indicates a missing caller identity.
	ErrUserIDRequired = errors.New("user id is required")
)
