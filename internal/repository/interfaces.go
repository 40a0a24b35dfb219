// Package repository provides data access interfaces and GORM implementations
// for the streamline catalog.
package repository

import (
	"context"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// VideoRepository defines operations on catalog video records.
//
// Get-style methods return (nil, nil) when the record does not exist.
type VideoRepository interface {
	// Create inserts the video and its tag rows in one transaction.
	Create(ctx context.Context, video *models.Video) error
	// GetByID retrieves a video with its tags.
	GetByID(ctx context.Context, id models.ULID) (*models.Video, error)
	// FindByContentHash returns a video in the channel with the given upload hash.
	FindByContentHash(ctx context.Context, channelID models.ULID, hash string) (*models.Video, error)
	// Delete removes the video, its tags, its reactions and its entry in the
	// owning channel's video list. Returns models.ErrVideoNotFound when absent.
	Delete(ctx context.Context, id models.ULID) error
	// IncrementViews atomically adds one view and returns the updated record.
	IncrementViews(ctx context.Context, id models.ULID) (*models.Video, error)
	// ToggleReaction flips the user's reaction to kind. Reacting with the kind
	// already held removes it; reacting with the other kind switches it.
	ToggleReaction(ctx context.Context, videoID models.ULID, userID string, kind models.ReactionKind) (*models.ReactionState, error)
	// Reactions returns the user ids holding each reaction on the video.
	Reactions(ctx context.Context, videoID models.ULID) (likes, dislikes []string, err error)
	// Query returns a page of videos plus the number of records matching the
	// predicates before pagination.
	Query(ctx context.Context, q Query) ([]*models.Video, int64, error)
}

// ChannelRepository defines operations on channels and their video lists.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id models.ULID) (*models.Channel, error)
	GetByOwner(ctx context.Context, ownerID string) (*models.Channel, error)
	// AppendVideo adds the video to the end of the channel's list. Appending
	// a video already listed in the same channel is a no-op.
	AppendVideo(ctx context.Context, channelID, videoID models.ULID) error
	// ListVideoIDs returns the channel's video ids in list order.
	ListVideoIDs(ctx context.Context, channelID models.ULID) ([]models.ULID, error)
}
