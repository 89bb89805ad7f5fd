package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
	"LedgerApi/internal/validation"
)

// LedgerService applies balance-changing operations. Every operation runs in
// one atomic unit of work; committed transactions are handed to the Notifier.
type LedgerService interface {
	Credit(ctx context.Context, req CreditRequest) (*Result, error)
	Debit(ctx context.Context, req DebitRequest) (*Result, error)
	Transfer(ctx context.Context, req TransferRequest) (*Result, error)
	GetTransaction(ctx context.Context, ownerID, transactionID string) (*model.Transaction, error)
}

// Notifier receives every freshly committed transaction. Implementations must
// not block the caller.
type Notifier interface {
	Notify(t model.Transaction)
}

// ReplayCache is an optional shortcut for idempotent replays. A nil
// transaction with a nil error is a miss.
type ReplayCache interface {
	Get(ctx context.Context, key string) (*model.Transaction, error)
	Put(ctx context.Context, key string, t *model.Transaction) error
}

// CreditRequest adds Amount to AccountID.
type CreditRequest struct {
	OwnerID        string
	AccountID      string `validate:"required"`
	Amount         int64  `validate:"gt=0"`
	Description    string
	IdempotencyKey string `validate:"max=255"`
	Metadata       map[string]any
}

// DebitRequest removes Amount from AccountID.
type DebitRequest struct {
	OwnerID        string
	AccountID      string `validate:"required"`
	Amount         int64  `validate:"gt=0"`
	Description    string
	IdempotencyKey string `validate:"max=255"`
	Metadata       map[string]any
}

// TransferRequest moves Amount between two accounts of the same owner.
type TransferRequest struct {
	OwnerID        string
	FromAccountID  string `validate:"required"`
	ToAccountID    string `validate:"required,nefield=FromAccountID"`
	Amount         int64  `validate:"gt=0"`
	Description    string
	IdempotencyKey string `validate:"max=255"`
	Metadata       map[string]any
}

// Result is the outcome of a ledger operation. Replayed is set when the
// transaction was already committed under the same idempotency key.
type Result struct {
	Transaction *model.Transaction
	Replayed    bool
}

// Option configures the ledger service.
type Option func(*ledgerService)

// WithNotifier hands every committed transaction to n.
func WithNotifier(n Notifier) Option {
	return func(s *ledgerService) {
		s.notifier = n
	}
}

// WithReplayCache answers repeated idempotency keys from c before the store.
func WithReplayCache(c ReplayCache) Option {
	return func(s *ledgerService) {
		s.guard.cache = c
	}
}

type ledgerService struct {
	repo     repository.LedgerRepository
	guard    *idempotencyGuard
	notifier Notifier
	logger   zerolog.Logger
}

// NewLedgerService creates a new ledger service on top of repo.
func NewLedgerService(repo repository.LedgerRepository, logger zerolog.Logger, opts ...Option) LedgerService {
	s := &ledgerService{
		repo:   repo,
		guard:  &idempotencyGuard{repo: repo, logger: logger},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ledgerService) Credit(ctx context.Context, req CreditRequest) (*Result, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.execute(ctx, operation{
		kind:           model.Credit,
		ownerID:        req.OwnerID,
		to:             req.AccountID,
		amount:         req.Amount,
		description:    req.Description,
		idempotencyKey: req.IdempotencyKey,
		metadata:       req.Metadata,
	})
}

func (s *ledgerService) Debit(ctx context.Context, req DebitRequest) (*Result, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.execute(ctx, operation{
		kind:           model.Debit,
		ownerID:        req.OwnerID,
		from:           req.AccountID,
		amount:         req.Amount,
		description:    req.Description,
		idempotencyKey: req.IdempotencyKey,
		metadata:       req.Metadata,
	})
}

func (s *ledgerService) Transfer(ctx context.Context, req TransferRequest) (*Result, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.execute(ctx, operation{
		kind:           model.Transfer,
		ownerID:        req.OwnerID,
		from:           req.FromAccountID,
		to:             req.ToAccountID,
		amount:         req.Amount,
		description:    req.Description,
		idempotencyKey: req.IdempotencyKey,
		metadata:       req.Metadata,
	})
}

func (s *ledgerService) GetTransaction(ctx context.Context, ownerID, transactionID string) (*model.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, ownerID, transactionID)
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

func (s *ledgerService) execute(ctx context.Context, op operation) (*Result, error) {
	currency, err := s.validate(ctx, op)
	if err != nil {
		return nil, err
	}

	if op.idempotencyKey != "" {
		cached, err := s.guard.cached(ctx, op.ownerID, op.idempotencyKey)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return &Result{Transaction: cached, Replayed: true}, nil
		}
	}

	tx, err := s.repo.BeginAtomic(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	record := op.record(currency)
	if err := tx.InsertTransaction(ctx, record); err != nil {
		if errors.Is(err, model.ErrDuplicateIdempotencyKey) {
			// Release the unit before looking up the winner.
			tx.Rollback()
			prior, err := s.guard.replay(ctx, op.ownerID, op.idempotencyKey)
			if err != nil {
				return nil, err
			}
			return &Result{Transaction: prior, Replayed: true}, nil
		}
		return nil, classify(err)
	}

	if err := applyOperation(ctx, tx, op); err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}

	s.logger.Info().
		Str("transaction_id", record.ID).
		Str("type", string(record.Type)).
		Int64("amount_cents", record.Amount).
		Msg("transaction committed")

	if op.idempotencyKey != "" {
		s.guard.remember(ctx, op.idempotencyKey, record)
	}
	if s.notifier != nil {
		s.notifier.Notify(*record)
	}

	return &Result{Transaction: record}, nil
}

// validate resolves the accounts before any store transaction is opened and
// returns the currency the transaction is recorded in. Request shape is
// checked by the callers.
func (s *ledgerService) validate(ctx context.Context, op operation) (string, error) {
	var currency string
	for _, id := range op.accounts() {
		a, err := s.repo.GetAccount(ctx, op.ownerID, id)
		if err != nil {
			return "", classify(err)
		}
		if currency != "" && a.Currency != currency {
			return "", model.ErrCurrencyMismatch
		}
		currency = a.Currency
	}
	return currency, nil
}

// classify passes domain errors through and marks everything else as a
// store failure.
func classify(err error) error {
	for _, domainErr := range []error{
		model.ErrAccountNotFound,
		model.ErrTransactionNotFound,
		model.ErrInsufficientFunds,
		model.ErrInvalidAmount,
		model.ErrInvalidAccount,
		model.ErrInvalidOperation,
		model.ErrSameAccount,
		model.ErrCurrencyMismatch,
		model.ErrIdempotencyKeyReused,
		model.ErrInvalidIdempotencyKey,
		model.ErrStoreUnavailable,
		model.ErrInvalidAPIKey,
		model.ErrInvalidWebhookURL,
		model.ErrWebhookNotFound,
	} {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
}
