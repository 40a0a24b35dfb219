package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/database"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
	"github.com/sanketb-14/Streamline-sub000/internal/storage"
)

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) { c.n.Add(1) }

type fixture struct {
	videos   *VideoService
	channels *ChannelService
	blobs    *storage.FSBlobStore
	inv      *countingInvalidator
	repo     repository.VideoRepository
	chanRepo repository.ChannelRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	blobs, err := storage.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		blobs:    blobs,
		inv:      &countingInvalidator{},
		repo:     repository.NewVideoRepository(db.DB),
		chanRepo: repository.NewChannelRepository(db.DB),
	}
	f.videos = NewVideoService(f.repo, f.chanRepo, blobs).WithInvalidator(f.inv)
	f.channels = NewChannelService(f.chanRepo)
	return f
}

// addVideo stores blobs and a record the way a committed upload would.
func (f *fixture) addVideo(t *testing.T, channel *models.Channel) *models.Video {
	t.Helper()
	ctx := context.Background()
	v := &models.Video{
		BaseModel: models.BaseModel{ID: models.NewULID()},
		Title:     "A committed video",
		ChannelID: channel.ID,
	}
	v.VideoKey = storage.VideoKey(channel.ID.String(), v.ID.String())
	v.ThumbnailKey = storage.ThumbnailKey(channel.ID.String(), v.ID.String())
	require.NoError(t, f.blobs.Put(ctx, v.VideoKey, strings.NewReader("mp4"), 3, "video/mp4"))
	require.NoError(t, f.blobs.Put(ctx, v.ThumbnailKey, strings.NewReader("jpg"), 3, "image/jpeg"))
	require.NoError(t, f.repo.Create(ctx, v))
	require.NoError(t, f.chanRepo.AppendVideo(ctx, channel.ID, v.ID))
	return v
}

func TestChannelService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.channels.Create(ctx, "alice", "  Alice's channel ", "cooking")
	require.NoError(t, err)
	assert.Equal(t, "Alice's channel", ch.Name)
	assert.True(t, ch.IsOwnedBy("alice"))

	_, err = f.channels.Create(ctx, "alice", "Second", "")
	assert.ErrorIs(t, err, models.ErrChannelExists)

	_, err = f.channels.Create(ctx, "", "Nobody", "")
	assert.ErrorIs(t, err, models.ErrUserIDRequired)

	_, err = f.channels.Create(ctx, "bob", "   ", "")
	var verr models.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestChannelService_GetByID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.channels.Create(ctx, "alice", "Alice", "")
	require.NoError(t, err)
	v1 := f.addVideo(t, ch)
	v2 := f.addVideo(t, ch)

	got, ids, err := f.channels.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, got.ID)
	assert.Equal(t, []models.ULID{v1.ID, v2.ID}, ids)

	_, _, err = f.channels.GetByID(ctx, models.NewULID())
	assert.ErrorIs(t, err, models.ErrChannelNotFound)
}

func TestVideoService_View(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ch, err := f.channels.Create(ctx, "alice", "Alice", "")
	require.NoError(t, err)
	v := f.addVideo(t, ch)

	got, err := f.videos.View(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Views)
	got, err = f.videos.View(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views)
	assert.Equal(t, int32(2), f.inv.n.Load())

	plain, err := f.videos.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), plain.Views, "GetByID does not count a view")

	_, err = f.videos.View(ctx, models.NewULID())
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestVideoService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ch, err := f.channels.Create(ctx, "alice", "Alice", "")
	require.NoError(t, err)
	v := f.addVideo(t, ch)

	err = f.videos.Delete(ctx, v.ID, "mallory")
	assert.ErrorIs(t, err, models.ErrNotChannelOwner)
	err = f.videos.Delete(ctx, v.ID, "")
	assert.ErrorIs(t, err, models.ErrUserIDRequired)

	require.NoError(t, f.videos.Delete(ctx, v.ID, "alice"))

	_, err = f.videos.GetByID(ctx, v.ID)
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
	_, ids, err := f.channels.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, ids, "back-reference removed")

	_, err = f.blobs.Get(ctx, v.VideoKey)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
	_, err = f.blobs.Get(ctx, v.ThumbnailKey)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
	assert.Equal(t, int32(1), f.inv.n.Load())

	assert.ErrorIs(t, f.videos.Delete(ctx, v.ID, "alice"), models.ErrVideoNotFound)
}

func TestVideoService_React(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ch, err := f.channels.Create(ctx, "alice", "Alice", "")
	require.NoError(t, err)
	v := f.addVideo(t, ch)

	state, err := f.videos.React(ctx, v.ID, "bob", models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionLike, state.Current)
	assert.Equal(t, int64(1), state.LikeCount)

	state, err = f.videos.React(ctx, v.ID, "bob", models.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionDislike, state.Current)
	assert.Zero(t, state.LikeCount)
	assert.Equal(t, int64(1), state.DislikeCount)

	likes, dislikes, err := f.videos.Reactions(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)
	assert.Equal(t, []string{"bob"}, dislikes)

	_, err = f.videos.React(ctx, v.ID, "bob", models.ReactionKind("love"))
	assert.ErrorIs(t, err, models.ErrInvalidReaction)
	_, _, err = f.videos.Reactions(ctx, models.NewULID())
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}
