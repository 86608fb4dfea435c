// Package tokenstore keeps the logout blacklist in Redis. A revoked token
// stays listed until it would have expired anyway.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storerate:revoked:"

// Client is the subset of redis.Cmdable the store uses.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store records revoked tokens.
type Store struct {
	client Client
}

// New wraps an existing client.
func New(client Client) *Store {
	return &Store{client: client}
}

// Connect dials Redis and checks the connection.
func Connect(ctx context.Context, opts Options) (*Store, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("tokenstore: ping %s: %w", opts.Addr, err)
	}
	return New(client), client, nil
}

// Revoke blacklists token for ttl. Tokens that already expired are skipped.
func (s *Store) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("tokenstore: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether token was revoked.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("tokenstore: lookup: %w", err)
	}
	return n > 0, nil
}

// key hashes the token so raw credentials never reach Redis.
func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}
