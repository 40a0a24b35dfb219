// Package service holds the catalog operations that sit between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
	"github.com/sanketb-14/Streamline-sub000/internal/storage"
)

// Invalidator is notified after every catalog mutation.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

// VideoService provides reads, deletes and reactions on catalog videos.
type VideoService struct {
	videos      repository.VideoRepository
	channels    repository.ChannelRepository
	blobs       storage.BlobStore
	invalidator Invalidator
	logger      *slog.Logger
}

// NewVideoService creates a new video service.
func NewVideoService(videos repository.VideoRepository, channels repository.ChannelRepository, blobs storage.BlobStore) *VideoService {
	return &VideoService{
		videos:      videos,
		channels:    channels,
		blobs:       blobs,
		invalidator: noopInvalidator{},
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *VideoService) WithLogger(logger *slog.Logger) *VideoService {
	s.logger = logger
	return s
}

// WithInvalidator sets the cache to invalidate after mutations.
func (s *VideoService) WithInvalidator(inv Invalidator) *VideoService {
	if inv != nil {
		s.invalidator = inv
	}
	return s
}

// GetByID retrieves a video without counting a view.
func (s *VideoService) GetByID(ctx context.Context, id models.ULID) (*models.Video, error) {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, models.ErrVideoNotFound
	}
	return video, nil
}

// View counts one view and returns the updated video.
func (s *VideoService) View(ctx context.Context, id models.ULID) (*models.Video, error) {
	video, err := s.videos.IncrementViews(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, models.ErrVideoNotFound
	}
	s.invalidator.Invalidate(ctx)
	return video, nil
}

// Delete removes a video owned by userID, its channel listing and its blobs.
// Blob removal happens after the catalog commit; failures there are logged.
func (s *VideoService) Delete(ctx context.Context, id models.ULID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.ErrUserIDRequired
	}

	video, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	channel, err := s.channels.GetByID(ctx, video.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil || !channel.IsOwnedBy(userID) {
		return models.ErrNotChannelOwner
	}

	if err := s.videos.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx)

	bctx := context.WithoutCancel(ctx)
	for _, key := range []string{video.VideoKey, video.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(bctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to delete blob of removed video",
				slog.String("video_id", id.String()),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "video deleted",
		slog.String("video_id", id.String()),
		slog.String("channel_id", video.ChannelID.String()),
	)
	return nil
}

// React toggles userID's reaction on a video.
func (s *VideoService) React(ctx context.Context, id models.ULID, userID string, kind models.ReactionKind) (*models.ReactionState, error) {
	state, err := s.videos.ToggleReaction(ctx, id, userID, kind)
	if err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(ctx)
	return state, nil
}

// Reactions lists the users holding each reaction on a video.
func (s *VideoService) Reactions(ctx context.Context, id models.ULID) (likes, dislikes []string, err error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, nil, err
	}
	return s.videos.Reactions(ctx, id)
}
