package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAccess  = "access"
	fieldRefresh = "refresh"
)

// Redis is a [Store] that keeps the token pair in a single Redis hash, both
// fields written in one command so the pair is never half-updated.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. prefix namespaces the key
// ("sv" yields "sv:tokens"). ttl <= 0 disables expiry; otherwise the pair
// expires ttl after its last save, which should track the refresh token's
// server-side lifetime.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "sv"
	}
	return &Redis{
		client: client,
		key:    prefix + ":tokens",
		ttl:    ttl,
	}
}

// Save implements [Store].
func (r *Redis) Save(ctx context.Context, pair Pair) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, fieldAccess, pair.Access, fieldRefresh, pair.Refresh)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis token save: %w", err)
	}
	return nil
}

// Load implements [Store].
func (r *Redis) Load(ctx context.Context) (Pair, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Pair{}, false, fmt.Errorf("redis token load: %w", err)
	}
	pair := Pair{
		Access:  fields[fieldAccess],
		Refresh: fields[fieldRefresh],
	}
	if pair.Empty() {
		return Pair{}, false, nil
	}
	return pair, true, nil
}

// Clear implements [Store].
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis token clear: %w", err)
	}
	return nil
}
