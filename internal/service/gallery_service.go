package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"minniegallery/internal/gallery"
	"minniegallery/internal/gateway"
	"minniegallery/internal/media"
	"minniegallery/internal/metrics"
	"minniegallery/internal/models"
)

type Scope int

const (
	ScopeAll Scope = iota
	ScopeMine
)

func (s Scope) String() string {
	if s == ScopeMine {
		return "mine"
	}
	return "all"
}

const (
	OrphanInsertFailed = "insert_failed"
	OrphanDeleteFailed = "delete_failed"
)

// OrphanReporter receives object keys that were left in storage without an
// image row.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, key, reason string) error
}

// GalleryService runs the synchronization operations between a session's
// gallery.Store and the remote gateway. Every operation reads the viewer
// from ctx through gateway.Auth.
type GalleryService struct {
	gw      gateway.Gateway
	builder gallery.Builder
	orphans OrphanReporter
	log     zerolog.Logger
	now     func() time.Time
}

func NewGalleryService(gw gateway.Gateway, orphans OrphanReporter, lookupConcurrency int, log zerolog.Logger) *GalleryService {
	s := &GalleryService{
		gw:      gw,
		orphans: orphans,
		log:     log,
		now:     time.Now,
	}
	s.builder = gallery.Builder{
		Users:       gw.Users,
		Concurrency: lookupConcurrency,
		OnLookupError: func(userID string, err error) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("uploader lookup failed")
		},
	}
	return s
}

func (s *GalleryService) viewer(ctx context.Context) (*gateway.Identity, error) {
	id, err := s.gw.Auth.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return id, nil
}

func (s *GalleryService) requireViewer(ctx context.Context) (gateway.Identity, error) {
	id, err := s.viewer(ctx)
	if err != nil {
		return gateway.Identity{}, err
	}
	if id == nil {
		return gateway.Identity{}, ErrNotAuthenticated
	}
	return *id, nil
}

// FetchImages replaces the store's items with a freshly built view of the
// selected images. Only the most recently issued fetch of a store lands.
func (s *GalleryService) FetchImages(ctx context.Context, store *gallery.Store, scope Scope) (err error) {
	defer func(start time.Time) { metrics.ObserveSync("fetch_images", start, err) }(time.Now())

	seq := store.BeginFetch()

	viewer, err := s.viewer(ctx)
	if err != nil {
		return err
	}
	var viewerID string
	if viewer != nil {
		viewerID = viewer.ID
	}

	q := gateway.ImageQuery{}
	if scope == ScopeMine {
		if viewer == nil {
			return ErrNotAuthenticated
		}
		q.UserID = viewer.ID
	}

	images, err := s.gw.Images.List(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Str("scope", scope.String()).Msg("list images failed")
		return fmt.Errorf("list images: %w", err)
	}

	if len(images) == 0 {
		store.Dispatch(gallery.SetItems{Items: []gallery.Item{}, Seq: seq})
		return nil
	}

	iq := gateway.InteractionQuery{}
	if scope == ScopeMine {
		iq.ImageIDs = make([]int64, 0, len(images))
		for _, img := range images {
			iq.ImageIDs = append(iq.ImageIDs, img.ID)
		}
	}
	interactions, ierr := s.gw.Interactions.List(ctx, iq)
	if ierr != nil {
		s.log.Warn().Err(ierr).Str("scope", scope.String()).Msg("list interactions failed, showing images without them")
		interactions = nil
	}

	items := s.builder.BuildItems(ctx, images, interactions, viewerID)
	if !store.Dispatch(gallery.SetItems{Items: items, Seq: seq}) {
		s.log.Debug().Uint64("seq", seq).Msg("stale fetch dropped")
	}
	return nil
}

func (s *GalleryService) FetchAllImages(ctx context.Context, store *gallery.Store) error {
	return s.FetchImages(ctx, store, ScopeAll)
}

func (s *GalleryService) FetchUserImages(ctx context.Context, store *gallery.Store) error {
	return s.FetchImages(ctx, store, ScopeMine)
}

// UploadImage stores the file held in the store's inputs, inserts its row
// and prepends the new item. Nothing remote happens unless both title and
// file are present.
func (s *GalleryService) UploadImage(ctx context.Context, store *gallery.Store) (item gallery.Item, err error) {
	inputs := store.Snapshot().Inputs
	if !inputs.Ready() {
		return gallery.Item{}, ErrMissingInputs
	}
	defer func(start time.Time) { metrics.ObserveSync("upload_image", start, err) }(time.Now())

	viewer, err := s.requireViewer(ctx)
	if err != nil {
		return gallery.Item{}, err
	}

	data, detected, err := media.Prepare(inputs.File.Data)
	if err != nil {
		return gallery.Item{}, fmt.Errorf("inspect upload: %w", err)
	}

	key := media.ObjectKey(s.now(), inputs.File.Name)
	if err := s.gw.Storage.Upload(ctx, key, data, detected.MIME); err != nil {
		s.log.Error().Err(err).Str("object_key", key).Msg("store upload failed")
		return gallery.Item{}, fmt.Errorf("store upload: %w", err)
	}

	image, err := s.gw.Images.Insert(ctx, models.NewImage{
		Title:    *inputs.Title,
		ImageURL: s.gw.Storage.PublicURL(key),
		UserID:   viewer.ID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("object_key", key).Str("user_id", viewer.ID).Msg("insert image failed")
		s.reportOrphan(ctx, key, OrphanInsertFailed)
		return gallery.Item{}, fmt.Errorf("insert image: %w", err)
	}

	item = gallery.Item{
		ID:           image.ID,
		ImageURL:     image.ImageURL,
		Title:        image.Title,
		Interactions: []models.Interaction{},
		UserEmail:    viewer.Email,
		UserID:       viewer.ID,
	}
	store.Dispatch(gallery.AddItem{Item: item})
	return item, nil
}

type DeleteResult struct {
	ObjectKey string
	// Orphaned is set when the row is gone but the object could not be
	// removed.
	Orphaned bool
}

// DeleteImage removes an image owned by the viewer. The row goes first, so a
// failure never leaves a row whose object is gone; the object to remove is
// taken from the deleted row, never from imageURL. A failed object removal is
// reported as an orphan and does not fail the delete. A failed row delete
// leaves the store untouched.
func (s *GalleryService) DeleteImage(ctx context.Context, store *gallery.Store, id int64, imageURL string) (res DeleteResult, err error) {
	if _, ok := s.gw.Storage.KeyFromURL(imageURL); !ok {
		return DeleteResult{}, ErrBadImageURL
	}
	defer func(start time.Time) { metrics.ObserveSync("delete_image", start, err) }(time.Now())

	viewer, err := s.requireViewer(ctx)
	if err != nil {
		return DeleteResult{}, err
	}

	deleted, err := s.gw.Images.Delete(ctx, id, viewer.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("image_id", id).Str("user_id", viewer.ID).Msg("delete image row failed")
		return DeleteResult{}, fmt.Errorf("delete image: %w", err)
	}
	store.Dispatch(gallery.DeleteItem{ID: id})

	if deleted.ImageURL != imageURL {
		s.log.Warn().Int64("image_id", id).Str("user_id", viewer.ID).Msg("delete request url does not match stored image url")
	}
	key, ok := s.gw.Storage.KeyFromURL(deleted.ImageURL)
	if !ok {
		s.log.Warn().Int64("image_id", id).Str("image_url", deleted.ImageURL).Msg("stored image url has no object key")
		return res, nil
	}
	res.ObjectKey = key

	if err := s.gw.Storage.Remove(ctx, key); err != nil {
		s.log.Warn().Err(err).Int64("image_id", id).Str("object_key", key).Msg("remove object failed, object orphaned")
		s.reportOrphan(ctx, key, OrphanDeleteFailed)
		res.Orphaned = true
	}
	return res, nil
}

// ToggleLike flips the viewer's like optimistically, then mirrors the change
// remotely. A remote failure reverts the local flip. If the local item
// disagreed with the remote row, the store is moved to the remote outcome.
func (s *GalleryService) ToggleLike(ctx context.Context, store *gallery.Store, imageID int64) (err error) {
	defer func(start time.Time) { metrics.ObserveSync("toggle_like", start, err) }(time.Now())

	viewer, err := s.requireViewer(ctx)
	if err != nil {
		return err
	}

	before, found := store.Find(imageID)
	flip := gallery.ToggleLike{ImageID: imageID, UserID: viewer.ID}
	store.Dispatch(flip)

	liked, err := s.mirrorLike(ctx, imageID, viewer.ID)
	if err != nil {
		store.Dispatch(flip)
		metrics.LikeRolledBack()
		s.log.Error().Err(err).Int64("image_id", imageID).Str("user_id", viewer.ID).Msg("toggle like failed, reverted")
		return err
	}

	if found && !before.UserLiked != liked {
		store.Dispatch(flip)
		s.log.Debug().Int64("image_id", imageID).Bool("liked", liked).Msg("like state converged to remote")
	}
	return nil
}

// mirrorLike removes the viewer's like when one exists and inserts one
// otherwise. It returns whether the viewer likes the image afterwards.
func (s *GalleryService) mirrorLike(ctx context.Context, imageID int64, userID string) (bool, error) {
	q := gateway.InteractionQuery{ImageID: imageID, UserID: userID, LikesOnly: true}

	existing, err := s.gw.Interactions.List(ctx, q)
	if err != nil {
		return false, fmt.Errorf("find like: %w", err)
	}

	if len(existing) > 0 {
		if _, err := s.gw.Interactions.Delete(ctx, q); err != nil {
			return false, fmt.Errorf("remove like: %w", err)
		}
		return false, nil
	}

	if _, err := s.gw.Interactions.Insert(ctx, models.Interaction{
		UserID:  userID,
		ImageID: imageID,
		Like:    true,
	}); err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	return true, nil
}

func (s *GalleryService) AddComment(ctx context.Context, store *gallery.Store, imageID int64, comment string) (err error) {
	text := strings.TrimSpace(comment)
	if text == "" {
		return ErrEmptyComment
	}
	defer func(start time.Time) { metrics.ObserveSync("add_comment", start, err) }(time.Now())

	viewer, err := s.requireViewer(ctx)
	if err != nil {
		return err
	}

	if _, err := s.gw.Interactions.Insert(ctx, models.Interaction{
		UserID:  viewer.ID,
		ImageID: imageID,
		Like:    false,
		Comment: &text,
	}); err != nil {
		s.log.Error().Err(err).Int64("image_id", imageID).Str("user_id", viewer.ID).Msg("insert comment failed")
		return fmt.Errorf("insert comment: %w", err)
	}

	store.Dispatch(gallery.AddComment{ImageID: imageID, Comment: text, UserID: viewer.ID})
	return nil
}

// FetchInteractions lists every like and comment left by the viewer.
func (s *GalleryService) FetchInteractions(ctx context.Context) ([]models.Interaction, error) {
	viewer, err := s.requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.gw.Interactions.List(ctx, gateway.InteractionQuery{UserID: viewer.ID})
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return rows, nil
}

// LikesEnabled reads the likes_enabled flag. A missing flag is created as
// enabled; any read problem counts as enabled.
func (s *GalleryService) LikesEnabled(ctx context.Context) bool {
	value, err := s.gw.Settings.Get(ctx, models.SettingLikesEnabled)
	if errors.Is(err, gateway.ErrNotFound) {
		if err := s.gw.Settings.Upsert(ctx, models.SettingLikesEnabled, "true"); err != nil {
			s.log.Warn().Err(err).Msg("create likes_enabled setting failed")
		}
		return true
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("read likes_enabled setting failed")
		return true
	}

	enabled, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		s.log.Warn().Str("value", value).Msg("invalid likes_enabled value")
		return true
	}
	return enabled
}

func (s *GalleryService) SetLikesEnabled(ctx context.Context, enabled bool) error {
	if _, err := s.requireViewer(ctx); err != nil {
		return err
	}
	if err := s.gw.Settings.Upsert(ctx, models.SettingLikesEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("update likes_enabled: %w", err)
	}
	return nil
}

// Download opens the original of an image held by the store. The caller
// closes the returned object's body.
func (s *GalleryService) Download(ctx context.Context, store *gallery.Store, imageID int64) (*gateway.Object, gallery.Item, error) {
	item, ok := store.Find(imageID)
	if !ok {
		return nil, gallery.Item{}, ErrImageNotInView
	}
	key, ok := s.gw.Storage.KeyFromURL(item.ImageURL)
	if !ok {
		return nil, gallery.Item{}, ErrBadImageURL
	}
	obj, err := s.gw.Storage.Download(ctx, key)
	if err != nil {
		return nil, gallery.Item{}, fmt.Errorf("download %s: %w", key, err)
	}
	return obj, item, nil
}

func (s *GalleryService) reportOrphan(ctx context.Context, key, reason string) {
	metrics.OrphanReported(reason)
	s.log.Warn().Str("object_key", key).Str("reason", reason).Msg("orphaned object")
	if s.orphans == nil {
		return
	}
	if err := s.orphans.ReportOrphan(context.WithoutCancel(ctx), key, reason); err != nil {
		s.log.Error().Err(err).Str("object_key", key).Msg("publish orphan failed")
	}
}
