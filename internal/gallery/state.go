// Package gallery holds the in-memory gallery cache: a State value, the
// actions that change it, the pure Reduce function and a Store that applies
// actions one at a time.
package gallery

import (
	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
)

// Item is a gallery image enriched with the aggregates computed from its
// interactions.
type Item struct {
	ID            int64                `json:"id"`
	ImageURL      string               `json:"image_url"`
	Title         string               `json:"title"`
	LikesCount    int                  `json:"likes_count"`
	CommentsCount int                  `json:"comments_count"`
	UserLiked     bool                 `json:"user_liked"`
	Interactions  []models.Interaction `json:"interactions"`
	UserEmail     string               `json:"user_email,omitempty"`
	UserID        string               `json:"user_id,omitempty"`
}

// Comments returns the interactions that carry a comment, in stored order.
func (it Item) Comments() []models.Interaction {
	out := make([]models.Interaction, 0, it.CommentsCount)
	for _, in := range it.Interactions {
		if in.HasComment() {
			out = append(out, in)
		}
	}
	return out
}

// Inputs is the transient upload form. A nil field is absent.
type Inputs struct {
	Title *string
	File  *gateway.File
	Path  *string
}

// Ready reports whether both the file and a non-empty title are present.
func (in Inputs) Ready() bool {
	return in.File != nil && in.Title != nil && *in.Title != ""
}

type State struct {
	Items                  []Item
	ImageUploadFormVisible bool
	Inputs                 Inputs
	SearchQuery            string
}

func InitialState() State {
	return State{Items: []Item{}}
}
