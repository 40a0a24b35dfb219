package query

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/database"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
)

var testQueryConfig = config.QueryConfig{Strict: true, DefaultLimit: 12, MaxLimit: 100}

// countingStore records how often the catalog is hit.
type countingStore struct {
	Store
	calls atomic.Int32
}

func (s *countingStore) Query(ctx context.Context, q repository.Query) ([]*models.Video, int64, error) {
	s.calls.Add(1)
	return s.Store.Query(ctx, q)
}

// seedVideos creates 12 videos. Video i has i*1000 views and i likes, is
// created on 2024-01-(i+1) at noon UTC, is tagged Music when i is even and
// Gaming when i is divisible by 3.
func seedVideos(t *testing.T) repository.VideoRepository {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	ctx := context.Background()
	channel := &models.Channel{OwnerID: "owner", Name: "Seed channel"}
	require.NoError(t, repository.NewChannelRepository(db.DB).Create(ctx, channel))

	videos := repository.NewVideoRepository(db.DB)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range 12 {
		v := &models.Video{
			BaseModel:    models.BaseModel{CreatedAt: base.AddDate(0, 0, i)},
			Title:        fmt.Sprintf("Seeded video %02d", i),
			Description:  "about number " + fmt.Sprint(i),
			ChannelID:    channel.ID,
			VideoKey:     fmt.Sprintf("videos/%d.mp4", i),
			ThumbnailKey: fmt.Sprintf("thumbnails/%d.jpg", i),
			Views:        int64(i * 1000),
			LikeCount:    int64(i),
		}
		var tags []string
		if i%2 == 0 {
			tags = append(tags, "Music")
		}
		if i%3 == 0 {
			tags = append(tags, "Gaming")
		}
		v.SetTags(tags)
		require.NoError(t, videos.Create(ctx, v))
	}
	return videos
}

func buildPage(t *testing.T, e *Engine, raw string) *Page {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	page, err := e.BuildPage(context.Background(), values)
	require.NoError(t, err)
	return page
}

func TestEngine_PopularFirstPage(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	page := buildPage(t, e, "sort=popular&limit=5")
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 5, page.PageSize)
	require.Len(t, page.Items, 5)
	for i := 1; i < len(page.Items); i++ {
		assert.Greater(t, page.Items[i-1].Views, page.Items[i].Views)
	}
	assert.Equal(t, int64(11000), page.Items[0].Views)
}

func TestEngine_TotalIndependentOfPagination(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	for _, raw := range []string{"page=1&limit=1", "page=3&limit=5", "page=99&limit=100", ""} {
		page := buildPage(t, e, raw)
		assert.Equal(t, int64(12), page.Total, raw)
	}

	beyond := buildPage(t, e, "page=4&limit=5")
	assert.Empty(t, beyond.Items)
	assert.Equal(t, int64(12), beyond.Total)

	huge := buildPage(t, e, "page=9223372036854775807&limit=12")
	assert.Empty(t, huge.Items)
	assert.Equal(t, int64(12), huge.Total)
}

func TestEngine_TagsMatchAnyAndNarrowing(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	both := buildPage(t, e, "tags=Music,Gaming")
	music := buildPage(t, e, "tags=Music")
	assert.Equal(t, int64(8), both.Total)
	assert.Equal(t, int64(6), music.Total)
	assert.LessOrEqual(t, music.Total, both.Total)
}

func TestEngine_ViewsRange(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	assert.Equal(t, int64(3), buildPage(t, e, "viewsRange=2000,4000").Total)
	assert.Equal(t, int64(2), buildPage(t, e, "viewsRange=10000,").Total)
	assert.Equal(t, int64(2), buildPage(t, e, "viewsRange=,1000").Total)

	empty := buildPage(t, e, "viewsRange=5000,1000")
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Items)

	_, err := e.BuildPage(context.Background(), url.Values{ParamViewsRange: {"abc,5"}})
	requireInvalid(t, err, ParamViewsRange)

	lenient := NewEngine(seedVideos(t), config.QueryConfig{Strict: false, DefaultLimit: 12, MaxLimit: 100})
	assert.Equal(t, int64(12), buildPage(t, lenient, "viewsRange=abc,5").Total)
}

func TestEngine_DateRangeInclusiveDay(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	// Videos 0, 1 and 2 were created at noon on Jan 1, 2 and 3.
	assert.Equal(t, int64(3), buildPage(t, e, "dateRange=2024-01-01,2024-01-03").Total)
	assert.Equal(t, int64(2), buildPage(t, e, "dateRange=2024-01-11,").Total)
	assert.Equal(t, int64(1), buildPage(t, e, "dateRange=,2024-01-01").Total)
	assert.Zero(t, buildPage(t, e, "dateRange=2024-02-01,2024-01-01").Total)
}

func TestEngine_SearchAndSort(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	page := buildPage(t, e, "search=NUMBER%201&sort=-views")
	// "number 1", "number 10" and "number 11"
	require.Equal(t, int64(3), page.Total)
	assert.Equal(t, int64(11000), page.Items[0].Views)

	liked := buildPage(t, e, "sort=leastLiked&limit=2")
	require.Len(t, liked.Items, 2)
	assert.Equal(t, int64(0), liked.Items[0].LikeCount)
	assert.Equal(t, int64(1), liked.Items[1].LikeCount)
}

func TestEngine_Projection(t *testing.T) {
	e := NewEngine(seedVideos(t), testQueryConfig)

	page := buildPage(t, e, "fields=title,views&sort=popular&limit=1")
	require.Len(t, page.Items, 1)
	item := Project(page.Items[0], page.Fields)
	assert.Equal(t, "Seeded video 11", item["title"])
	assert.Equal(t, int64(11000), item["views"])
	assert.Equal(t, "11,000 views", item["views_text"])
	assert.Equal(t, "11K", item["views_compact"])
	assert.NotContains(t, item, "created_text")
	assert.Contains(t, item, "id")
	assert.NotContains(t, item, "description")
	assert.NotContains(t, item, "version")

	full := ProjectPage(buildPage(t, e, "sort=oldest&limit=1"))
	require.Len(t, full, 1)
	assert.Equal(t, []string{"Music", "Gaming"}, full[0]["tags"])
	assert.NotContains(t, full[0], "version")
	assert.Equal(t, "0:00", full[0]["duration_text"])
}

func TestProject_DisplayStrings(t *testing.T) {
	v := &models.Video{
		BaseModel:       models.BaseModel{ID: models.NewULID(), CreatedAt: time.Now().Add(-3 * time.Hour)},
		Views:           1_240_000,
		DurationSeconds: 187,
	}

	item := Project(v, []repository.Field{repository.FieldViews, repository.FieldDurationSeconds, repository.FieldCreatedAt})
	assert.Equal(t, "1,240,000 views", item["views_text"])
	assert.Equal(t, "1.2M", item["views_compact"])
	assert.Equal(t, "3:07", item["duration_text"])
	assert.Equal(t, "3 hours ago", item["created_text"])
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, time.Minute, nil)
}

func TestEngine_CacheHitAndInvalidate(t *testing.T) {
	store := &countingStore{Store: seedVideos(t)}
	_, cache := newTestRedis(t)
	e := NewEngine(store, testQueryConfig, WithCache(cache))

	first := buildPage(t, e, "tags=Music&sort=popular")
	second := buildPage(t, e, "tags=Music&sort=popular")
	assert.Equal(t, int32(1), store.calls.Load(), "second request is served from cache")
	assert.Equal(t, first.Total, second.Total)
	require.Len(t, second.Items, len(first.Items))
	assert.Equal(t, first.Items[0].ID, second.Items[0].ID)
	assert.Equal(t, first.Items[0].TagNames(), second.Items[0].TagNames())

	e.Invalidate(context.Background())
	buildPage(t, e, "tags=Music&sort=popular")
	assert.Equal(t, int32(2), store.calls.Load(), "invalidation forces a fresh query")
}

func TestEngine_CacheFailureIsBypassed(t *testing.T) {
	store := &countingStore{Store: seedVideos(t)}
	mr, cache := newTestRedis(t)
	e := NewEngine(store, testQueryConfig, WithCache(cache))
	mr.Close()

	page := buildPage(t, e, "")
	assert.Equal(t, int64(12), page.Total)
	buildPage(t, e, "")
	assert.Equal(t, int32(2), store.calls.Load())
	assert.NotPanics(t, func() { e.Invalidate(context.Background()) })
}

func TestRedisCache_Expires(t *testing.T) {
	mr, cache := newTestRedis(t)
	spec := mustParse(t, "")
	cache.Store(context.Background(), spec, &Page{Total: 1, Page: 1, PageSize: 12})

	_, ok := cache.Load(context.Background(), spec)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Load(context.Background(), spec)
	assert.False(t, ok)
}
