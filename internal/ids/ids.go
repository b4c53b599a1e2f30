package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a sortable id for sessions, devices and tokens.
func New() string {
	return ksuid.New().String()
}

// NewUserID returns the identifier stored in users.id.
func NewUserID() string {
	return uuid.NewString()
}
