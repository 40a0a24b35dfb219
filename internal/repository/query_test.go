package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// seedCatalog creates twelve videos with distinct view counts 0, 1000, ..., 11000.
// Even-indexed videos are tagged Music, every third is tagged Gaming.
func seedCatalog(t *testing.T, db *gorm.DB) []*models.Video {
	t.Helper()
	ch := createTestChannel(t, db, "seed-owner")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	videos := make([]*models.Video, 0, 12)
	for i := range 12 {
		var tags []string
		if i%2 == 0 {
			tags = append(tags, "Music")
		}
		if i%3 == 0 {
			tags = append(tags, "Gaming")
		}
		v := createTestVideo(t, db, ch.ID, videoTitle(i), int64(i)*1000, tags...)
		createdAt := base.AddDate(0, 0, i)
		require.NoError(t, db.Model(&models.Video{}).Where("id = ?", v.ID).UpdateColumn("created_at", createdAt).Error)
		v.CreatedAt = createdAt
		videos = append(videos, v)
	}
	return videos
}

func videoTitle(i int) string {
	return "Catalog video " + string(rune('A'+i))
}

func TestQuery_TotalIgnoresPagination(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	for _, limit := range []int{1, 5, 12, 100} {
		for _, offset := range []int{0, 5, 20} {
			items, total, err := repo.Query(ctx, Query{Offset: offset, Limit: limit})
			require.NoError(t, err)
			assert.Equal(t, int64(12), total, "limit=%d offset=%d", limit, offset)
			assert.LessOrEqual(t, len(items), limit)
		}
	}
}

func TestQuery_OffsetPastEnd(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	repo := NewVideoRepository(db)

	for _, offset := range []int{12, math.MaxInt} {
		items, total, err := repo.Query(context.Background(), Query{Offset: offset, Limit: 12})
		require.NoError(t, err)
		assert.Empty(t, items, "offset=%d", offset)
		assert.Equal(t, int64(12), total)
	}
}

func TestQuery_PopularOrdering(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	repo := NewVideoRepository(db)

	items, total, err := repo.Query(context.Background(), Query{
		Sort:  []SortKey{{Field: FieldViews, Desc: true}},
		Limit: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, items, 5)

	for i := 1; i < len(items); i++ {
		assert.Greater(t, items[i-1].Views, items[i].Views)
	}
	assert.Equal(t, int64(11000), items[0].Views)
}

func TestQuery_TagsMatchAny(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	music, musicTotal, err := repo.Query(ctx, Query{Predicates: []Predicate{In(FieldTags, "Music")}})
	require.NoError(t, err)
	assert.Equal(t, int64(6), musicTotal)
	for _, v := range music {
		assert.Contains(t, v.TagNames(), "Music")
	}

	// 0,2,4,6,8,10 tagged Music; 0,3,6,9 tagged Gaming; union is 8 videos.
	_, eitherTotal, err := repo.Query(ctx, Query{Predicates: []Predicate{In(FieldTags, "Music", "Gaming")}})
	require.NoError(t, err)
	assert.Equal(t, int64(8), eitherTotal)
	assert.GreaterOrEqual(t, eitherTotal, musicTotal, "narrowing the tag set never increases the count")

	_, noneTotal, err := repo.Query(ctx, Query{Predicates: []Predicate{Eq(FieldTags, "Travel")}})
	require.NoError(t, err)
	assert.Zero(t, noneTotal)
}

func TestQuery_ViewsRangeInclusive(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	items, total, err := repo.Query(ctx, Query{Predicates: []Predicate{Range(FieldViews, int64(2000), int64(4000))}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, v := range items {
		assert.GreaterOrEqual(t, v.Views, int64(2000))
		assert.LessOrEqual(t, v.Views, int64(4000))
	}

	_, total, err = repo.Query(ctx, Query{Predicates: []Predicate{Range(FieldViews, int64(10000), nil)}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.Query(ctx, Query{Predicates: []Predicate{Range(FieldViews, nil, int64(1000))}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.Query(ctx, Query{Predicates: []Predicate{Range(FieldViews, nil, nil)}})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	items, total, err = repo.Query(ctx, Query{Predicates: []Predicate{Range(FieldViews, int64(5000), int64(1000))}})
	require.NoError(t, err)
	assert.Zero(t, total, "min > max yields an empty result")
	assert.Empty(t, items)
}

func TestQuery_CreatedAtRange(t *testing.T) {
	db := setupTestDB(t)
	videos := seedCatalog(t, db)
	repo := NewVideoRepository(db)

	items, total, err := repo.Query(context.Background(), Query{
		Predicates: []Predicate{Range(FieldCreatedAt, videos[3].CreatedAt, videos[5].CreatedAt)},
		Sort:       []SortKey{{Field: FieldCreatedAt}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, videos[3].ID, items[0].ID)
	assert.Equal(t, videos[5].ID, items[2].ID)
}

func TestQuery_Search(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	ch := createTestChannel(t, db, "searcher")
	createTestVideo(t, db, ch.ID, "Learning Go Generics", 0)
	createTestVideo(t, db, ch.ID, "Cooking pasta fast", 0)
	v := createTestVideo(t, db, ch.ID, "Weekend vlog entry", 0)
	require.NoError(t, db.Model(&models.Video{}).Where("id = ?", v.ID).
		UpdateColumn("description", "we tried GOLANG at 100% speed").Error)

	_, total, err := repo.Query(ctx, Query{Search: "go"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "matches title or description, case-insensitive")

	_, total, err = repo.Query(ctx, Query{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.Query(ctx, Query{Search: "%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "wildcards in the term are literal")

	_, total, err = repo.Query(ctx, Query{Search: "go", Predicates: []Predicate{Gte(FieldViews, int64(1))}})
	require.NoError(t, err)
	assert.Zero(t, total, "search is ANDed with the other predicates")
}

func TestQuery_Projection(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	repo := NewVideoRepository(db)

	items, _, err := repo.Query(context.Background(), Query{Fields: []Field{FieldTitle}, Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, v := range items {
		assert.False(t, v.ID.IsZero(), "id is always loaded")
		assert.NotEmpty(t, v.Title)
		assert.Empty(t, v.VideoKey)
		assert.Nil(t, v.Tags)
	}

	items, _, err = repo.Query(context.Background(), Query{
		Fields:     []Field{FieldTags},
		Predicates: []Predicate{Eq(FieldTags, "Gaming")},
	})
	require.NoError(t, err)
	for _, v := range items {
		assert.Contains(t, v.TagNames(), "Gaming")
		assert.Empty(t, v.Title)
	}
}

func TestQuery_InvalidInput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
	}{
		{"unsortable field", Query{Sort: []SortKey{{Field: FieldDescription}}}},
		{"unknown sort field", Query{Sort: []SortKey{{Field: Field("password")}}}},
		{"unknown projection", Query{Fields: []Field{"secret"}}},
		{"unknown predicate field", Query{Predicates: []Predicate{Eq(Field("x"), 1)}}},
		{"unsupported operator", Query{Predicates: []Predicate{{Field: FieldViews, Op: Op("like"), Values: []any{1}}}}},
		{"range on tags", Query{Predicates: []Predicate{Range(FieldTags, "a", "b")}}},
		{"empty in", Query{Predicates: []Predicate{In(FieldViews)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := repo.Query(ctx, tt.query)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!%", escapeLike("100%"))
	assert.Equal(t, "a!_b", escapeLike("a_b"))
	assert.Equal(t, "wow!!", escapeLike("wow!"))
}

func TestField(t *testing.T) {
	assert.True(t, FieldViews.IsValid())
	assert.True(t, FieldViews.IsSortable())
	assert.False(t, FieldTags.IsSortable())
	assert.False(t, Field("nope").IsValid())
	assert.Contains(t, ProjectableFields(), FieldVersion)
}
