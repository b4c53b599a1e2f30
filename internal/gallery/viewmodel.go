package gallery

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
)

const (
	UnknownUploader = "User"
	DeletedUploader = "Deleted User"
)

const defaultLookupConcurrency = 4

// Builder joins raw image and interaction rows into Items.
type Builder struct {
	Users       gateway.Users
	Concurrency int
	// OnLookupError is called for every uploader lookup that fails with
	// something other than gateway.ErrNotFound.
	OnLookupError func(userID string, err error)
}

// BuildItems returns one Item per image, in the order of images. viewerID is
// empty for anonymous viewers. A failed uploader lookup only affects the
// items of that uploader.
func (b Builder) BuildItems(ctx context.Context, images []models.Image, interactions []models.Interaction, viewerID string) []Item {
	byImage := make(map[int64][]models.Interaction, len(images))
	for _, in := range interactions {
		byImage[in.ImageID] = append(byImage[in.ImageID], in)
	}

	emails := b.resolveUploaders(ctx, images)

	items := make([]Item, 0, len(images))
	for _, img := range images {
		related := byImage[img.ID]
		if related == nil {
			related = []models.Interaction{}
		}

		item := Item{
			ID:           img.ID,
			ImageURL:     img.ImageURL,
			Title:        img.Title,
			Interactions: related,
			UserID:       img.UserID,
			UserEmail:    UnknownUploader,
		}
		if email, ok := emails[img.UserID]; ok {
			item.UserEmail = email
		}

		for _, in := range related {
			if in.Like {
				item.LikesCount++
				if viewerID != "" && in.UserID == viewerID {
					item.UserLiked = true
				}
			}
			if in.HasComment() {
				item.CommentsCount++
			}
		}

		items = append(items, item)
	}
	return items
}

// resolveUploaders looks every distinct uploader up once, in parallel.
func (b Builder) resolveUploaders(ctx context.Context, images []models.Image) map[string]string {
	ids := make([]string, 0, len(images))
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img.UserID == "" {
			continue
		}
		if _, ok := seen[img.UserID]; ok {
			continue
		}
		seen[img.UserID] = struct{}{}
		ids = append(ids, img.UserID)
	}

	labels := make([]string, len(ids))
	if b.Users != nil {
		limit := b.Concurrency
		if limit <= 0 {
			limit = defaultLookupConcurrency
		}

		var g errgroup.Group
		g.SetLimit(limit)
		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				labels[i] = b.uploaderLabel(ctx, id)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range labels {
			labels[i] = UnknownUploader
		}
	}

	out := make(map[string]string, len(ids))
	for i, id := range ids {
		out[id] = labels[i]
	}
	return out
}

func (b Builder) uploaderLabel(ctx context.Context, userID string) string {
	email, err := b.Users.Email(ctx, userID)
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return DeletedUploader
	case err != nil:
		if b.OnLookupError != nil {
			b.OnLookupError(userID, err)
		}
		return UnknownUploader
	case email == "":
		return UnknownUploader
	default:
		return email
	}
}
