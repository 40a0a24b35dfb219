package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Channel is the owning entity for videos. Each user owns at most one.
type Channel struct {
	BaseModel

	OwnerID     string `gorm:"size:128;not null;uniqueIndex" json:"owner_id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:1000" json:"description,omitempty"`
}

// TableName returns the table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// Validate checks the channel's required fields.
func (c *Channel) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrValidation{Field: "owner_id", Message: "is required"}
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrValidation{Field: "name", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > 100 {
		return ErrValidation{Field: "name", Message: "must be at most 100 characters"}
	}
	return nil
}

// IsOwnedBy reports whether userID owns the channel.
func (c *Channel) IsOwnedBy(userID string) bool {
	return userID != "" && c.OwnerID == userID
}

// ChannelVideo links a video into its channel's ordered video list.
type ChannelVideo struct {
	ChannelID ULID      `gorm:"primaryKey;type:varchar(26);uniqueIndex:idx_channel_position,priority:1"`
	VideoID   ULID      `gorm:"primaryKey;type:varchar(26);uniqueIndex"`
	Position  int64     `gorm:"not null;uniqueIndex:idx_channel_position,priority:2"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for ChannelVideo.
func (ChannelVideo) TableName() string {
	return "channel_videos"
}
