package repository

import (
	"context"
	"fmt"
	"time"

	"slotify/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisDedupStore is the fast-path webhook dedup cache. The durable
// authority is the webhook_events ledger in the database; this store
// only short-circuits obvious gateway retries cheaply.
type RedisDedupStore struct {
	client *redis.Client
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisDedupStore(client *redis.Client) *RedisDedupStore {
	return &RedisDedupStore{client: client}
}

func dedupKey(gateway, eventID string) string {
	return fmt.Sprintf("webhook_seen:%s:%s", gateway, eventID)
}

// MarkProcessed records the event id and reports whether this call was
// the first to do so (SET NX).
func (r *RedisDedupStore) MarkProcessed(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	first, err := r.client.SetNX(ctx, dedupKey(gateway, eventID), time.Now().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return first, nil
}

func (r *RedisDedupStore) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	n, err := r.client.Exists(ctx, dedupKey(gateway, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check webhook key: %w", err)
	}
	return n > 0, nil
}
