package models

import (
	"strings"
	"time"
)

// Interaction is a single like or comment left by a user on an image.
type Interaction struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ImageID   int64     `json:"image_id"`
	Like      bool      `json:"like"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// HasComment reports whether the row carries a non-blank comment.
func (i Interaction) HasComment() bool {
	return i.Comment != nil && strings.TrimSpace(*i.Comment) != ""
}
