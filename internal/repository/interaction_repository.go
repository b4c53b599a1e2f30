package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
)

type InteractionRepository struct {
	pool *pgxpool.Pool
}

func NewInteractionRepository(pool *pgxpool.Pool) *InteractionRepository {
	return &InteractionRepository{pool: pool}
}

func (r *InteractionRepository) List(ctx context.Context, q gateway.InteractionQuery) ([]models.Interaction, error) {
	if q.ImageIDs != nil && len(q.ImageIDs) == 0 {
		return []models.Interaction{}, nil
	}

	where, args := interactionWhere(q)
	query := `
		SELECT id, user_id, image_id, "like", comment, created_at
		FROM interactions` + where + `
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Interaction{}
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(
			&in.ID,
			&in.UserID,
			&in.ImageID,
			&in.Like,
			&in.Comment,
			&in.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *InteractionRepository) Insert(ctx context.Context, in models.Interaction) (models.Interaction, error) {
	const query = `
		INSERT INTO interactions (user_id, image_id, "like", comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	if err := r.pool.QueryRow(ctx, query, in.UserID, in.ImageID, in.Like, in.Comment).Scan(
		&in.ID,
		&in.CreatedAt,
	); err != nil {
		return models.Interaction{}, err
	}
	return in, nil
}

func (r *InteractionRepository) Delete(ctx context.Context, q gateway.InteractionQuery) (int64, error) {
	where, args := interactionWhere(q)
	if where == "" {
		return 0, fmt.Errorf("refusing unfiltered interaction delete")
	}

	cmd, err := r.pool.Exec(ctx, `DELETE FROM interactions`+where, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func interactionWhere(q gateway.InteractionQuery) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.ImageIDs != nil {
		add("image_id = ANY($%d)", q.ImageIDs)
	}
	if q.ImageID != 0 {
		add("image_id = $%d", q.ImageID)
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if q.LikesOnly {
		clauses = append(clauses, `"like" = TRUE`)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
