package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// maxToggleAttempts bounds optimistic-concurrency retries for reaction toggles.
const maxToggleAttempts = 5

var errVersionConflict = errors.New("video version changed")

// videoRepo implements VideoRepository using GORM.
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

// Create inserts the video and its tags.
func (r *videoRepo) Create(ctx context.Context, video *models.Video) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(video).Error
	})
	if err != nil {
		return fmt.Errorf("creating video: %w", err)
	}
	return nil
}

// GetByID retrieves a video by ID, including its tags.
func (r *videoRepo) GetByID(ctx context.Context, id models.ULID) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).
		Preload("Tags", orderTags).
		Where("id = ?", id).
		First(&video).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by ID: %w", err)
	}
	return &video, nil
}

// FindByContentHash returns the first video in a channel with a matching upload hash.
func (r *videoRepo) FindByContentHash(ctx context.Context, channelID models.ULID, hash string) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND content_hash = ?", channelID, hash).
		Order("created_at ASC").
		First(&video).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding video by content hash: %w", err)
	}
	return &video, nil
}

// Delete removes the video together with everything that references it.
func (r *videoRepo) Delete(ctx context.Context, id models.ULID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", id).Delete(&models.ChannelVideo{}).Error; err != nil {
			return fmt.Errorf("removing channel entry: %w", err)
		}
		if err := tx.Where("video_id = ?", id).Delete(&models.VideoReaction{}).Error; err != nil {
			return fmt.Errorf("removing reactions: %w", err)
		}
		if err := tx.Where("video_id = ?", id).Delete(&models.VideoTag{}).Error; err != nil {
			return fmt.Errorf("removing tags: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Video{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrVideoNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return err
		}
		return fmt.Errorf("deleting video: %w", err)
	}
	return nil
}

// IncrementViews adds one view and returns the refreshed record.
func (r *videoRepo) IncrementViews(ctx context.Context, id models.ULID) (*models.Video, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return nil, fmt.Errorf("incrementing views: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// ToggleReaction applies a like/dislike toggle under an optimistic version
// check, retrying when another writer got there first.
func (r *videoRepo) ToggleReaction(ctx context.Context, videoID models.ULID, userID string, kind models.ReactionKind) (*models.ReactionState, error) {
	if !kind.Valid() {
		return nil, models.ErrInvalidReaction
	}
	if userID == "" {
		return nil, models.ErrUserIDRequired
	}

	for range maxToggleAttempts {
		state, err := r.toggleOnce(ctx, videoID, userID, kind)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			if errors.Is(err, models.ErrVideoNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("toggling reaction: %w", err)
		}
		return state, nil
	}
	return nil, models.ErrConcurrentUpdate
}

func (r *videoRepo) toggleOnce(ctx context.Context, videoID models.ULID, userID string, kind models.ReactionKind) (*models.ReactionState, error) {
	state := &models.ReactionState{VideoID: videoID, UserID: userID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		err := tx.Select("id", "version", "like_count", "dislike_count").
			Where("id = ?", videoID).
			First(&video).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrVideoNotFound
		}
		if err != nil {
			return err
		}

		var existing models.VideoReaction
		err = tx.Where("video_id = ? AND user_id = ?", videoID, userID).First(&existing).Error
		hasExisting := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		likes, dislikes := video.LikeCount, video.DislikeCount
		adjust := func(k models.ReactionKind, delta int64) {
			if k == models.ReactionLike {
				likes += delta
			} else {
				dislikes += delta
			}
		}

		switch {
		case hasExisting && existing.Kind == kind:
			adjust(kind, -1)
		case hasExisting:
			adjust(existing.Kind, -1)
			adjust(kind, 1)
			state.Current = kind
		default:
			adjust(kind, 1)
			state.Current = kind
		}

		// Claim the row first so concurrent togglers on the same video
		// serialize on the version check.
		result := tx.Model(&models.Video{}).
			Where("id = ? AND version = ?", videoID, video.Version).
			UpdateColumns(map[string]any{
				"like_count":    likes,
				"dislike_count": dislikes,
				"version":       gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionConflict
		}

		switch {
		case hasExisting && existing.Kind == kind:
			err = tx.Where("video_id = ? AND user_id = ?", videoID, userID).Delete(&models.VideoReaction{}).Error
		case hasExisting:
			err = tx.Model(&models.VideoReaction{}).
				Where("video_id = ? AND user_id = ?", videoID, userID).
				Update("kind", kind).Error
		default:
			err = tx.Create(&models.VideoReaction{VideoID: videoID, UserID: userID, Kind: kind}).Error
		}
		if err != nil {
			return err
		}

		state.LikeCount, state.DislikeCount = likes, dislikes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Reactions returns the user ids that like and dislike the video.
func (r *videoRepo) Reactions(ctx context.Context, videoID models.ULID) ([]string, []string, error) {
	var rows []models.VideoReaction
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("listing reactions: %w", err)
	}

	likes, dislikes := []string{}, []string{}
	for _, row := range rows {
		if row.Kind == models.ReactionLike {
			likes = append(likes, row.UserID)
		} else {
			dislikes = append(dislikes, row.UserID)
		}
	}
	return likes, dislikes, nil
}

// Query runs a compiled query. The count uses the same predicates as the
// page but ignores ordering, offset and limit.
func (r *videoRepo) Query(ctx context.Context, q Query) ([]*models.Video, int64, error) {
	cq, err := compileQuery(q)
	if err != nil {
		return nil, 0, err
	}

	filtered := func(db *gorm.DB) *gorm.DB {
		for _, f := range cq.filters {
			db = f(db)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Video{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting videos: %w", err)
	}

	videos := []*models.Video{}
	if int64(cq.offset) >= total {
		return videos, total, nil
	}

	find := r.db.WithContext(ctx).Model(&models.Video{}).Scopes(filtered)
	if len(cq.columns) > 0 {
		find = find.Select(cq.columns)
	}
	if len(cq.order) > 0 {
		find = find.Order(clause.OrderBy{Columns: cq.order})
	}
	if cq.offset > 0 {
		find = find.Offset(cq.offset)
	}
	if cq.limit > 0 {
		find = find.Limit(cq.limit)
	}
	if cq.preloadTags {
		find = find.Preload("Tags", orderTags)
	}

	if err := find.Find(&videos).Error; err != nil {
		return nil, 0, fmt.Errorf("querying videos: %w", err)
	}
	return videos, total, nil
}

func orderTags(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Ensure videoRepo implements VideoRepository at compile time.
var _ VideoRepository = (*videoRepo)(nil)
