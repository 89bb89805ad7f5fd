package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
)

// idempotencyGuard resolves replays. The unique constraint on the
// transactions table is the only authority; the cache merely answers
// repeated retries without touching the store.
type idempotencyGuard struct {
	repo   repository.LedgerRepository
	cache  ReplayCache
	logger zerolog.Logger
}

// cached returns nil, nil on a miss. Cache failures are treated as misses.
func (g *idempotencyGuard) cached(ctx context.Context, ownerID, key string) (*model.Transaction, error) {
	if g.cache == nil {
		return nil, nil
	}
	t, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn().Err(err).Str("idempotency_key", key).Msg("replay cache lookup failed")
		return nil, nil
	}
	if t == nil {
		return nil, nil
	}
	if t.OwnerID != ownerID {
		return nil, model.ErrIdempotencyKeyReused
	}
	return t, nil
}

// replay fetches the transaction that won the insert for key.
func (g *idempotencyGuard) replay(ctx context.Context, ownerID, key string) (*model.Transaction, error) {
	t, err := g.repo.FindTransactionByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: idempotent replay lookup: %w", model.ErrStoreUnavailable, err)
	}
	if t.OwnerID != ownerID {
		return nil, model.ErrIdempotencyKeyReused
	}
	g.remember(ctx, key, t)
	return t, nil
}

func (g *idempotencyGuard) remember(ctx context.Context, key string, t *model.Transaction) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Put(ctx, key, t); err != nil {
		g.logger.Warn().Err(err).Str("idempotency_key", key).Msg("replay cache store failed")
	}
}
