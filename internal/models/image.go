package models

import "time"

// Image is a row of the images table.
type Image struct {
	ID        int64
	Title     string
	ImageURL  string
	UserID    string
	CreatedAt time.Time
}

// NewImage carries the columns a client supplies on insert; id and
// created_at are assigned by the database.
type NewImage struct {
	Title    string
	ImageURL string
	UserID   string
}
