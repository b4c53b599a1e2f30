package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
)

var ErrImageNotFound = fmt.Errorf("image %w", gateway.ErrNotFound)

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Insert(ctx context.Context, image models.NewImage) (models.Image, error) {
	const query = `
		INSERT INTO images (title, image_url, user_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, title, image_url, user_id, created_at
	`

	var out models.Image
	err := r.pool.QueryRow(ctx, query, image.Title, image.ImageURL, image.UserID).Scan(
		&out.ID,
		&out.Title,
		&out.ImageURL,
		&out.UserID,
		&out.CreatedAt,
	)
	if err != nil {
		return models.Image{}, err
	}
	return out, nil
}

func (r *ImageRepository) List(ctx context.Context, q gateway.ImageQuery) ([]models.Image, error) {
	query := `
		SELECT id, title, image_url, COALESCE(user_id, ''), created_at
		FROM images
	`
	var args []any
	if q.UserID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, q.UserID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var image models.Image
		if err := rows.Scan(
			&image.ID,
			&image.Title,
			&image.ImageURL,
			&image.UserID,
			&image.CreatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (r *ImageRepository) Delete(ctx context.Context, id int64, ownerID string) (models.Image, error) {
	const query = `
		DELETE FROM images WHERE id = $1 AND user_id = $2
		RETURNING id, title, image_url, user_id, created_at
	`

	var image models.Image
	if err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(
		&image.ID,
		&image.Title,
		&image.ImageURL,
		&image.UserID,
		&image.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

// ReferencedURLs returns every image_url currently stored. Used by the
// orphan sweep.
func (r *ImageRepository) ReferencedURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT image_url FROM images`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}
