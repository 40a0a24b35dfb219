package models

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

// Metadata limits for a video.
const (
	TitleMinLength       = 10
	TitleMaxLength       = 50
	DescriptionMaxLength = 500
	MaxTags              = 5
)

// TagVocabulary is the closed set of tags a video may carry.
var TagVocabulary = []string{
	"Music",
	"Gaming",
	"Education",
	"Entertainment",
	"Sports",
	"News",
	"Technology",
	"Comedy",
	"Travel",
	"Food",
	"Fashion",
	"Science",
	"Film",
	"Animation",
	"Vlog",
	"Howto",
}

// IsKnownTag reports whether tag is part of the vocabulary. Matching is exact.
func IsKnownTag(tag string) bool {
	return slices.Contains(TagVocabulary, tag)
}

// Video is a catalog record for one uploaded video.
type Video struct {
	BaseModel

	Title       string `gorm:"size:50;not null" json:"title"`
	Description string `gorm:"size:500" json:"description"`

	// ChannelID is the owning channel. A video belongs to exactly one channel.
	ChannelID ULID `gorm:"type:varchar(26);not null;index" json:"channel_id"`

	VideoKey     string `gorm:"size:255;not null" json:"video_key"`
	ThumbnailKey string `gorm:"size:255;not null" json:"thumbnail_key"`

	// Views only ever grows, via VideoRepository.IncrementViews.
	Views int64 `gorm:"not null;default:0;index" json:"views"`

	// LikeCount and DislikeCount mirror the rows in video_reactions and are
	// updated in the same transaction as the reaction change.
	LikeCount    int64 `gorm:"not null;default:0;index" json:"like_count"`
	DislikeCount int64 `gorm:"not null;default:0" json:"dislike_count"`

	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	ContentHash     string  `gorm:"size:64;index" json:"content_hash,omitempty"`

	// Version is the optimistic-concurrency revision; internal only.
	Version int64 `gorm:"not null" json:"-"`

	Tags []VideoTag `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// BeforeCreate assigns an ID and the initial revision.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if err := v.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if v.Version == 0 {
		v.Version = 1
	}
	return nil
}

// TagNames returns the video's tags in insertion order.
func (v *Video) TagNames() []string {
	names := make([]string, 0, len(v.Tags))
	for _, t := range v.Tags {
		names = append(names, t.Tag)
	}
	return names
}

// SetTags replaces the tag rows with the given names.
func (v *Video) SetTags(names []string) {
	v.Tags = make([]VideoTag, 0, len(names))
	for i, name := range names {
		v.Tags = append(v.Tags, VideoTag{VideoID: v.ID, Tag: name, Position: i})
	}
}

// Validate checks the video's metadata invariants.
func (v *Video) Validate() error {
	if v.ChannelID.IsZero() {
		return ErrValidation{Field: "channel_id", Message: "is required"}
	}
	return ValidateMetadata(v.Title, v.Description, v.TagNames())
}

// ValidateMetadata checks title, description and tags against the catalog
// limits. Lengths are counted in runes.
func ValidateMetadata(title, description string, tags []string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < TitleMinLength || n > TitleMaxLength {
		return ErrValidation{
			Field:   "title",
			Message: fmt.Sprintf("must be between %d and %d characters, got %d", TitleMinLength, TitleMaxLength, n),
		}
	}
	if n := utf8.RuneCountInString(description); n > DescriptionMaxLength {
		return ErrValidation{
			Field:   "description",
			Message: fmt.Sprintf("must be at most %d characters, got %d", DescriptionMaxLength, n),
		}
	}
	return ValidateTags(tags)
}

// ValidateTags enforces the tag count limit, the closed vocabulary and uniqueness.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return ErrValidation{Field: "tags", Message: fmt.Sprintf("at most %d tags allowed, got %d", MaxTags, len(tags))}
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if !IsKnownTag(tag) {
			return ErrValidation{Field: "tags", Message: fmt.Sprintf("unknown tag %q", tag)}
		}
		if _, dup := seen[tag]; dup {
			return ErrValidation{Field: "tags", Message: fmt.Sprintf("duplicate tag %q", tag)}
		}
		seen[tag] = struct{}{}
	}
	return nil
}

// VideoTag is one tag on a video.
type VideoTag struct {
	VideoID  ULID   `gorm:"primaryKey;type:varchar(26)" json:"-"`
	Tag      string `gorm:"primaryKey;size:32;index" json:"tag"`
	Position int    `gorm:"not null;default:0" json:"-"`
}

// TableName returns the table name for VideoTag.
func (VideoTag) TableName() string {
	return "video_tags"
}
