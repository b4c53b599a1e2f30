// Package gateway describes the remote services the gallery talks to: auth,
// the relational tables (images, interactions, users, app_settings) and blob
// storage. Synchronization code only ever sees these interfaces; concrete
// implementations live in repository, storage, cache and service.
package gateway

import (
	"context"
	"errors"
	"io"

	"minniegallery/internal/models"
)

// ErrNotFound is wrapped by every implementation when a single-row lookup
// matches nothing.
var ErrNotFound = errors.New("not found")

// Identity is the authenticated viewer.
type Identity struct {
	ID    string
	Email string
}

type Credentials struct {
	Email      string `validate:"required,email"`
	Password   string `validate:"required,min=8,max=128"`
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

type Session struct {
	AccessToken  string
	RefreshToken string
	DeviceID     string
	SessionID    string
	User         Identity
}

type Auth interface {
	// CurrentUser returns nil without error for anonymous callers.
	CurrentUser(ctx context.Context) (*Identity, error)
	SignIn(ctx context.Context, creds Credentials) (Session, error)
	// SignUp creates a pending account and sends the verification mail.
	SignUp(ctx context.Context, creds Credentials) (Identity, error)
}

// ImageQuery selects images newest first. An empty UserID selects everything.
type ImageQuery struct {
	UserID string
}

type Images interface {
	List(ctx context.Context, q ImageQuery) ([]models.Image, error)
	Insert(ctx context.Context, image models.NewImage) (models.Image, error)
	// Delete removes the row only when it belongs to ownerID and returns the
	// row as it was.
	Delete(ctx context.Context, id int64, ownerID string) (models.Image, error)
}

// InteractionQuery filters interaction rows. Zero-valued fields do not filter;
// a non-nil ImageIDs restricts to that set, so an empty non-nil slice matches
// nothing.
type InteractionQuery struct {
	ImageIDs  []int64
	ImageID   int64
	UserID    string
	LikesOnly bool
}

type Interactions interface {
	List(ctx context.Context, q InteractionQuery) ([]models.Interaction, error)
	Insert(ctx context.Context, interaction models.Interaction) (models.Interaction, error)
	Delete(ctx context.Context, q InteractionQuery) (int64, error)
}

type Users interface {
	Email(ctx context.Context, userID string) (string, error)
}

type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, key, value string) error
}

// File is a blob picked for upload but not stored yet.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Object struct {
	Key         string
	Size        int64
	ContentType string
	Body        io.ReadCloser
}

type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
	Download(ctx context.Context, key string) (*Object, error)
	Remove(ctx context.Context, keys ...string) error
	// KeyFromURL recovers the object key from a URL produced by PublicURL.
	KeyFromURL(url string) (string, bool)
}

// Gateway bundles every remote collaborator. It is passed explicitly to the
// synchronization operations so tests can swap any part.
type Gateway struct {
	Auth         Auth
	Images       Images
	Interactions Interactions
	Users        Users
	Settings     Settings
	Storage      Storage
}
