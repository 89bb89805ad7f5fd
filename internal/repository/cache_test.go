package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
)

func newTestCache(t *testing.T, ttl time.Duration) (*repository.RedisReplayCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return repository.NewRedisReplayCache(client, ttl), mr
}

func TestRedisReplayCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)

	got, err := cache.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisReplayCache_RoundTripKeepsOwner(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t, time.Hour)

	to := "acc-1"
	original := &model.Transaction{
		ID:          "tx-1",
		OwnerID:     "owner-1",
		Type:        model.Credit,
		ToAccountID: &to,
		Amount:      2500,
		Currency:    "USD",
		Status:      model.StatusCompleted,
		Metadata:    map[string]any{"order": "42"},
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, cache.Put(ctx, "key-1", original))
	assert.True(t, mr.Exists("idempotency:key-1"))
	assert.Equal(t, time.Hour, mr.TTL("idempotency:key-1"))

	got, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, "tx-1", got.ID)
	assert.Equal(t, int64(2500), got.Amount)
	assert.Equal(t, "acc-1", *got.ToAccountID)
	assert.Nil(t, got.FromAccountID)
	require.NotNil(t, got.IdempotencyKey)
	assert.Equal(t, "key-1", *got.IdempotencyKey)
	assert.Equal(t, "42", got.Metadata["order"])
}

func TestRedisReplayCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t, time.Minute)

	require.NoError(t, cache.Put(ctx, "k", &model.Transaction{ID: "tx", OwnerID: "o"}))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisReplayCache_Unavailable(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestRedisReplayCache_CorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set("idempotency:bad", "not json"))

	_, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
}
