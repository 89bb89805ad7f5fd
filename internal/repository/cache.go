package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"LedgerApi/internal/model"
)

const replayKeyPrefix = "idempotency:"

// cachedTransaction keeps the fields model.Transaction hides from JSON.
type cachedTransaction struct {
	OwnerID     string            `json:"owner_id"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Transaction model.Transaction `json:"transaction"`
}

// RedisReplayCache holds committed transactions by idempotency key so replays
// can be answered without opening a store transaction. It never holds balances.
type RedisReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReplayCache creates a replay cache whose entries expire after ttl.
func NewRedisReplayCache(client *redis.Client, ttl time.Duration) *RedisReplayCache {
	return &RedisReplayCache{client: client, ttl: ttl}
}

// Get returns nil, nil on a cache miss.
func (c *RedisReplayCache) Get(ctx context.Context, key string) (*model.Transaction, error) {
	val, err := c.client.Get(ctx, replayKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var cached cachedTransaction
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached transaction: %w", err)
	}
	t := cached.Transaction
	t.OwnerID = cached.OwnerID
	t.Metadata = cached.Metadata
	t.IdempotencyKey = &key
	return &t, nil
}

func (c *RedisReplayCache) Put(ctx context.Context, key string, t *model.Transaction) error {
	b, err := json.Marshal(cachedTransaction{OwnerID: t.OwnerID, Metadata: t.Metadata, Transaction: *t})
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return c.client.Set(ctx, replayKeyPrefix+key, b, c.ttl).Err()
}
