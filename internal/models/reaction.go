package models

import "time"

// ReactionKind is the kind of reaction a user holds on a video.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// VideoReaction records one user's reaction to one video. The composite
// primary key allows a single reaction per (video, user), so a user is never
// in the likes and the dislikes of a video at the same time.
type VideoReaction struct {
	VideoID   ULID         `gorm:"primaryKey;type:varchar(26)"`
	UserID    string       `gorm:"primaryKey;size:128"`
	Kind      ReactionKind `gorm:"size:8;not null;index"`
	CreatedAt time.Time
}

// TableName returns the table name for VideoReaction.
func (VideoReaction) TableName() string {
	return "video_reactions"
}

// ReactionState is the caller-visible result of a toggle.
type ReactionState struct {
	VideoID      ULID         `json:"video_id"`
	UserID       string       `json:"user_id"`
	Current      ReactionKind `json:"current,omitempty"` // empty when the user holds no reaction
	LikeCount    int64        `json:"like_count"`
	DislikeCount int64        `json:"dislike_count"`
}
