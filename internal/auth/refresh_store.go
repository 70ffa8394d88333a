package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"infinitetms/internal/apperr"
)

const (
	refreshKeyPrefix = "refresh_token:"
	sessionKeyPrefix = "session_refresh:"
)

// RefreshStore keeps opaque refresh tokens in Redis. Tokens are stored
// hashed; each maps to exactly one session and each session to one token.
type RefreshStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRefreshStore(rdb *redis.Client, ttl time.Duration) *RefreshStore {
	return &RefreshStore{rdb: rdb, ttl: ttl}
}

// Issue creates a refresh token bound to sid.
func (s *RefreshStore) Issue(ctx context.Context, sid string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	hashed := hashToken(token)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, refreshKeyPrefix+hashed, sid, s.ttl)
	pipe.Set(ctx, sessionKeyPrefix+sid, hashed, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Resolve returns the session a refresh token belongs to.
func (s *RefreshStore) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing refresh token", apperr.ErrAuth)
	}
	sid, err := s.rdb.Get(ctx, refreshKeyPrefix+hashToken(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: invalid refresh token", apperr.ErrAuth)
	}
	if err != nil {
		return "", fmt.Errorf("%w: refresh store: %v", apperr.ErrServiceUnavailable, err)
	}
	return sid, nil
}

// Revoke drops the refresh token of session sid. Revoking an unknown session
// is not an error.
func (s *RefreshStore) Revoke(ctx context.Context, sid string) error {
	hashed, err := s.rdb.Get(ctx, sessionKeyPrefix+sid).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	if err := s.rdb.Del(ctx, refreshKeyPrefix+hashed, sessionKeyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
