package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"minniegallery/internal/security"
)

var ErrVerificationInvalid = errors.New("verification token invalid or expired")

// VerificationTokens keeps single-use sign-up verification tokens. Only the
// token digest is used as the redis key.
type VerificationTokens struct {
	kv  KV
	ttl time.Duration
}

func NewVerificationTokens(kv KV, ttl time.Duration) *VerificationTokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VerificationTokens{kv: kv, ttl: ttl}
}

func (v *VerificationTokens) Issue(ctx context.Context, userID string) (string, error) {
	token, digest, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	if err := v.kv.Set(ctx, verifyKey(digest), userID, v.ttl).Err(); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

// Consume returns the user the token was issued for and invalidates it.
func (v *VerificationTokens) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrVerificationInvalid
	}
	userID, err := v.kv.GetDel(ctx, verifyKey(security.HashToken(token))).Result()
	if errors.Is(err, redis.Nil) || (err == nil && userID == "") {
		return "", ErrVerificationInvalid
	}
	if err != nil {
		return "", fmt.Errorf("consume verification token: %w", err)
	}
	return userID, nil
}

func verifyKey(digest []byte) string {
	return fmt.Sprintf("%sverify:%x", keyPrefix, digest)
}
