package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
)

// ChannelService provides the channel facts the upload path depends on.
type ChannelService struct {
	repo   repository.ChannelRepository
	logger *slog.Logger
}

// NewChannelService creates a new channel service.
func NewChannelService(repo repository.ChannelRepository) *ChannelService {
	return &ChannelService{
		repo:   repo,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ChannelService) WithLogger(logger *slog.Logger) *ChannelService {
	s.logger = logger
	return s
}

// Create creates the caller's channel. Each user owns at most one.
func (s *ChannelService) Create(ctx context.Context, ownerID, name, description string) (*models.Channel, error) {
	channel := &models.Channel{
		OwnerID:     strings.TrimSpace(ownerID),
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if channel.OwnerID == "" {
		return nil, models.ErrUserIDRequired
	}
	if err := channel.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, channel); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "channel created",
		slog.String("channel_id", channel.ID.String()),
		slog.String("owner_id", channel.OwnerID),
	)
	return channel, nil
}

// GetByID retrieves a channel and its video ids in list order.
func (s *ChannelService) GetByID(ctx context.Context, id models.ULID) (*models.Channel, []models.ULID, error) {
	channel, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if channel == nil {
		return nil, nil, models.ErrChannelNotFound
	}
	ids, err := s.repo.ListVideoIDs(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return channel, ids, nil
}
