package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"minniegallery/internal/gateway"
)

// missingMarker is stored for users that no longer exist.
const missingMarker = "\x00missing"

// UserDirectory serves uploader emails from redis, falling back to the
// backing lookup. Redis failures are logged and bypassed.
type UserDirectory struct {
	kv      KV
	backing gateway.Users
	ttl     time.Duration
	log     zerolog.Logger
}

func NewUserDirectory(kv KV, backing gateway.Users, ttl time.Duration, log zerolog.Logger) *UserDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UserDirectory{kv: kv, backing: backing, ttl: ttl, log: log}
}

func (d *UserDirectory) Email(ctx context.Context, userID string) (string, error) {
	key := uploaderKey(userID)

	cached, err := d.kv.Get(ctx, key).Result()
	switch {
	case err == nil && cached == missingMarker:
		return "", fmt.Errorf("user %s: %w", userID, gateway.ErrNotFound)
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		d.log.Warn().Err(err).Str("user_id", userID).Msg("uploader cache read failed")
	}

	email, err := d.backing.Email(ctx, userID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			d.store(ctx, key, missingMarker)
		}
		return "", err
	}
	d.store(ctx, key, email)
	return email, nil
}

func (d *UserDirectory) store(ctx context.Context, key, value string) {
	if err := d.kv.Set(ctx, key, value, d.ttl).Err(); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("uploader cache write failed")
	}
}

func uploaderKey(userID string) string {
	return keyPrefix + "uploader:" + userID
}
