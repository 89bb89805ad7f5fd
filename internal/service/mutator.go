package service

import (
	"context"
	"math"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
)

// operation is the closed set of balance changes. from is empty for credits,
// to is empty for debits.
type operation struct {
	kind           model.TransactionType
	ownerID        string
	from           string
	to             string
	amount         int64
	description    string
	idempotencyKey string
	metadata       map[string]any
}

func (op operation) accounts() []string {
	switch op.kind {
	case model.Credit:
		return []string{op.to}
	case model.Debit:
		return []string{op.from}
	default:
		return []string{op.from, op.to}
	}
}

func (op operation) record(currency string) *model.Transaction {
	return &model.Transaction{
		OwnerID:        op.ownerID,
		IdempotencyKey: model.StringPtr(op.idempotencyKey),
		Type:           op.kind,
		FromAccountID:  model.StringPtr(op.from),
		ToAccountID:    model.StringPtr(op.to),
		Amount:         op.amount,
		Currency:       currency,
		Description:    model.StringPtr(op.description),
		Status:         model.StatusCompleted,
		Metadata:       op.metadata,
	}
}

// applyOperation changes balances inside tx. Balances are always read under
// the row lock, never from an earlier snapshot.
func applyOperation(ctx context.Context, tx repository.AtomicTx, op operation) error {
	switch op.kind {
	case model.Credit:
		return credit(ctx, tx, op.ownerID, op.to, op.amount)
	case model.Debit:
		return debit(ctx, tx, op.ownerID, op.from, op.amount)
	case model.Transfer:
		return transfer(ctx, tx, op.ownerID, op.from, op.to, op.amount)
	default:
		return model.ErrInvalidOperation
	}
}

func credit(ctx context.Context, tx repository.AtomicTx, ownerID, accountID string, amount int64) error {
	a, err := lockOwned(ctx, tx, ownerID, accountID)
	if err != nil {
		return err
	}
	if a.Balance > math.MaxInt64-amount {
		return model.ErrInvalidAmount
	}
	return tx.WriteAccountBalance(ctx, a.ID, a.Balance+amount)
}

func debit(ctx context.Context, tx repository.AtomicTx, ownerID, accountID string, amount int64) error {
	a, err := lockOwned(ctx, tx, ownerID, accountID)
	if err != nil {
		return err
	}
	if a.Balance < amount {
		return &model.InsufficientFundsError{AccountID: a.ID, Requested: amount, Available: a.Balance}
	}
	return tx.WriteAccountBalance(ctx, a.ID, a.Balance-amount)
}

// transfer locks both rows in ascending id order, whatever the direction, so
// concurrent A->B and B->A transfers cannot deadlock.
func transfer(ctx context.Context, tx repository.AtomicTx, ownerID, fromID, toID string, amount int64) error {
	if fromID == toID {
		return model.ErrSameAccount
	}

	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]*model.Account, 2)
	for _, id := range []string{first, second} {
		a, err := lockOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		locked[id] = a
	}

	from, to := locked[fromID], locked[toID]
	if from.Currency != to.Currency {
		return model.ErrCurrencyMismatch
	}
	if from.Balance < amount {
		return &model.InsufficientFundsError{AccountID: from.ID, Requested: amount, Available: from.Balance}
	}
	if to.Balance > math.MaxInt64-amount {
		return model.ErrInvalidAmount
	}

	if err := tx.WriteAccountBalance(ctx, from.ID, from.Balance-amount); err != nil {
		return err
	}
	return tx.WriteAccountBalance(ctx, to.ID, to.Balance+amount)
}

func lockOwned(ctx context.Context, tx repository.AtomicTx, ownerID, accountID string) (*model.Account, error) {
	a, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, model.ErrAccountNotFound
	}
	return a, nil
}
