package model

import (
	"time"
)

// TransactionType is the closed set of ledger operations.
type TransactionType string

const (
	Credit   TransactionType = "credit"
	Debit    TransactionType = "debit"
	Transfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case Credit, Debit, Transfer:
		return true
	}
	return false
}

const StatusCompleted = "completed"

// Transaction is an append-only ledger record. FromAccountID is nil for
// credits and ToAccountID is nil for debits.
type Transaction struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"-"`
	IdempotencyKey *string         `json:"-"`
	Type           TransactionType `json:"transaction_type"`
	FromAccountID  *string         `json:"from_account_id"`
	ToAccountID    *string         `json:"to_account_id"`
	Amount         int64           `json:"amount_cents"`
	Currency       string          `json:"currency"`
	Description    *string         `json:"description"`
	Status         string          `json:"status"`
	Metadata       map[string]any  `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Accounts returns the ids of the accounts the transaction touches.
func (t *Transaction) Accounts() []string {
	ids := make([]string, 0, 2)
	if t.FromAccountID != nil {
		ids = append(ids, *t.FromAccountID)
	}
	if t.ToAccountID != nil {
		ids = append(ids, *t.ToAccountID)
	}
	return ids
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
