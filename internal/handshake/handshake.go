// Package handshake tracks pending OAuth handshakes between the /initiate redirect
// and the /onboard callback. Each handshake is identified by its single-use state
// token and stops being valid once it is deleted or its expiry passes.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no pending handshake exists for a token.
var ErrNotFound = errors.New("handshake not found")

// Handshake is a pending OAuth handshake.
type Handshake struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the handshake is no longer valid at now.
// A handshake is still valid at exactly its expiry second.
func (h *Handshake) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// Store persists pending handshakes.
//
// Delete must be atomic: when several callers delete the same token concurrently,
// exactly one of them observes deleted=true.
type Store interface {
	Create(ctx context.Context, h *Handshake, ttl time.Duration) error
	Get(ctx context.Context, token string) (*Handshake, error)
	Delete(ctx context.Context, token string) (deleted bool, err error)
}

// RedisStore keeps handshakes as Redis hashes with a key TTL.
// Keys are namespaced so several environments can share one Redis server.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a handshake store on an existing Redis client.
// Returns an error if namespace is empty.
func NewRedisStore(rdb *redis.Client, namespace string) (*RedisStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &RedisStore{
		rdb:       rdb,
		namespace: namespace,
	}, nil
}

// Key returns the Redis key for a handshake token.
// Pattern: onboarding:{namespace}:handshake:{token}
func Key(namespace, token string) string {
	return fmt.Sprintf("onboarding:%s:handshake:%s", namespace, token)
}

// Create writes a handshake and lets Redis drop it after ttl.
// The explicit ExpiresAt is still authoritative; the key TTL only reclaims
// handshakes that are never completed.
func (s *RedisStore) Create(ctx context.Context, h *Handshake, ttl time.Duration) error {
	if h.Token == "" {
		return fmt.Errorf("handshake token cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("handshake ttl must be positive, got %s", ttl)
	}

	key := Key(s.namespace, h.Token)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"token":      h.Token,
			"expires_at": h.ExpiresAt.UnixNano(),
		})
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write handshake to Redis: %w", err)
	}

	return nil
}

// Get retrieves a pending handshake.
// Returns (nil, ErrNotFound) if the token is unknown or Redis already expired it.
func (s *RedisStore) Get(ctx context.Context, token string) (*Handshake, error) {
	hashData, err := s.rdb.HGetAll(ctx, Key(s.namespace, token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake from Redis: %w", err)
	}

	// HGetAll returns an empty map for missing keys
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}

	expiresAt, err := strconv.ParseInt(hashData["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at field: %w", err)
	}

	return &Handshake{
		Token:     token,
		ExpiresAt: time.Unix(0, expiresAt),
	}, nil
}

// Delete removes a handshake and reports whether this call removed it.
func (s *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Del(ctx, Key(s.namespace, token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete handshake from Redis: %w", err)
	}
	return n > 0, nil
}

// IsNotFound returns true if err reports a missing handshake.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
