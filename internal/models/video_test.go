package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		tags        []string
		wantField   string
	}{
		{"valid", "Twelve chars", "", []string{"Music", "Gaming"}, ""},
		{"valid at max lengths", strings.Repeat("t", 50), strings.Repeat("d", 500), nil, ""},
		{"title too short", "short", "", nil, "title"},
		{"title too long", strings.Repeat("t", 51), "", nil, "title"},
		{"title counted in runes", strings.Repeat("é", 10), "", nil, ""},
		{"title whitespace ignored", "   short   ", "", nil, "title"},
		{"description too long", "Twelve chars", strings.Repeat("d", 501), nil, "description"},
		{"five tags", "Twelve chars", "", []string{"Music", "Gaming", "News", "Film", "Vlog"}, ""},
		{"six tags", "Twelve chars", "", []string{"Music", "Gaming", "News", "Film", "Vlog", "Food"}, "tags"},
		{"unknown tag", "Twelve chars", "", []string{"Music", "Knitting"}, "tags"},
		{"wrong case", "Twelve chars", "", []string{"music"}, "tags"},
		{"duplicate tag", "Twelve chars", "", []string{"Music", "Music"}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetadata(tt.title, tt.description, tt.tags)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr ErrValidation
			require.True(t, errors.As(err, &verr), "expected ErrValidation, got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestVideo_Tags(t *testing.T) {
	v := &Video{ChannelID: NewULID(), Title: "Twelve chars"}
	v.SetTags([]string{"Music", "Gaming"})

	assert.Equal(t, []string{"Music", "Gaming"}, v.TagNames())
	assert.Equal(t, 1, v.Tags[1].Position)
	assert.NoError(t, v.Validate())
}

func TestVideo_ValidateRequiresChannel(t *testing.T) {
	v := &Video{Title: "Twelve chars"}
	err := v.Validate()

	var verr ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "channel_id", verr.Field)
}

func TestVideo_BeforeCreate(t *testing.T) {
	v := &Video{}
	require.NoError(t, v.BeforeCreate(nil))

	assert.False(t, v.ID.IsZero())
	assert.Equal(t, int64(1), v.Version)
}

func TestChannel_Validate(t *testing.T) {
	assert.NoError(t, (&Channel{OwnerID: "user-1", Name: "Cooking"}).Validate())
	assert.Error(t, (&Channel{Name: "Cooking"}).Validate())
	assert.Error(t, (&Channel{OwnerID: "user-1", Name: "  "}).Validate())
	assert.Error(t, (&Channel{OwnerID: "user-1", Name: strings.Repeat("n", 101)}).Validate())
}

func TestChannel_IsOwnedBy(t *testing.T) {
	c := &Channel{OwnerID: "user-1"}

	assert.True(t, c.IsOwnedBy("user-1"))
	assert.False(t, c.IsOwnedBy("user-2"))
	assert.False(t, c.IsOwnedBy(""))
}

func TestReactionKind_Valid(t *testing.T) {
	assert.True(t, ReactionLike.Valid())
	assert.True(t, ReactionDislike.Valid())
	assert.False(t, ReactionKind("love").Valid())
}
