package repository

import (
	"context"

	"LedgerApi/internal/model"
)

// AtomicTx is one atomic unit of work. Rows returned by LockAccount stay
// locked against other units until Commit or Rollback. Rollback after
// Commit is a no-op.
type AtomicTx interface {
	LockAccount(ctx context.Context, accountID string) (*model.Account, error)
	WriteAccountBalance(ctx context.Context, accountID string, balance int64) error
	// InsertTransaction fills in ID and CreatedAt. It returns
	// model.ErrDuplicateIdempotencyKey when the key is already taken.
	InsertTransaction(ctx context.Context, t *model.Transaction) error
	Commit() error
	Rollback() error
}

// LedgerRepository is what the transaction engine needs from the store.
type LedgerRepository interface {
	BeginAtomic(ctx context.Context) (AtomicTx, error)
	GetAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error)
	GetTransaction(ctx context.Context, ownerID, transactionID string) (*model.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error)
}

// AccountRepository stores accounts and the API keys that own them.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error)
	CreateAPIKey(ctx context.Context, k *model.APIKey) error
	FindAPIKeyByHash(ctx context.Context, keyHash string) (*model.APIKey, error)
}

// WebhookRepository stores webhook endpoints and delivery records.
type WebhookRepository interface {
	CreateWebhookEndpoint(ctx context.Context, e *model.WebhookEndpoint) error
	ListActiveWebhookEndpoints(ctx context.Context, ownerID string) ([]model.WebhookEndpoint, error)
	DeactivateWebhookEndpoint(ctx context.Context, ownerID, endpointID string) error
	InsertWebhookEvent(ctx context.Context, ev *model.WebhookEvent) error
}

// Repository is implemented by every store backend.
type Repository interface {
	LedgerRepository
	AccountRepository
	WebhookRepository
	Ping(ctx context.Context) error
}
