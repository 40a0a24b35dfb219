package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

const maxAppendAttempts = 3

// channelRepo implements ChannelRepository using GORM.
type channelRepo struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) *channelRepo {
	return &channelRepo{db: db}
}

// Create creates a new channel. An owner may hold only one channel.
func (r *channelRepo) Create(ctx context.Context, channel *models.Channel) error {
	existing, err := r.GetByOwner(ctx, channel.OwnerID)
	if err != nil {
		return err
	}
	if existing != nil {
		return models.ErrChannelExists
	}
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	return nil
}

// GetByID retrieves a channel by ID.
func (r *channelRepo) GetByID(ctx context.Context, id models.ULID) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting channel by ID: %w", err)
	}
	return &channel, nil
}

// GetByOwner retrieves the channel owned by a user.
func (r *channelRepo) GetByOwner(ctx context.Context, ownerID string) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting channel by owner: %w", err)
	}
	return &channel, nil
}

// AppendVideo adds the video at the end of the channel's list. A concurrent
// append that claims the same position fails the unique index and is retried
// against the new tail.
func (r *channelRepo) AppendVideo(ctx context.Context, channelID, videoID models.ULID) error {
	var err error
	for range maxAppendAttempts {
		err = r.appendOnce(ctx, channelID, videoID)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("appending video to channel: %w", err)
	}
	return nil
}

func (r *channelRepo) appendOnce(ctx context.Context, channelID, videoID models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ChannelVideo
		err := tx.Where("video_id = ?", videoID).First(&existing).Error
		if err == nil {
			if existing.ChannelID != channelID {
				return fmt.Errorf("video %s is already listed in channel %s", videoID, existing.ChannelID)
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var last struct{ Position int64 }
		if err := tx.Model(&models.ChannelVideo{}).
			Select("COALESCE(MAX(position), 0) AS position").
			Where("channel_id = ?", channelID).
			Scan(&last).Error; err != nil {
			return err
		}

		return tx.Create(&models.ChannelVideo{
			ChannelID: channelID,
			VideoID:   videoID,
			Position:  last.Position + 1,
		}).Error
	})
}

// ListVideoIDs returns the channel's video ids in list order.
func (r *channelRepo) ListVideoIDs(ctx context.Context, channelID models.ULID) ([]models.ULID, error) {
	var ids []models.ULID
	err := r.db.WithContext(ctx).
		Model(&models.ChannelVideo{}).
		Where("channel_id = ?", channelID).
		Order("position ASC").
		Pluck("video_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing channel videos: %w", err)
	}
	return ids, nil
}

// Ensure channelRepo implements ChannelRepository at compile time.
var _ ChannelRepository = (*channelRepo)(nil)
