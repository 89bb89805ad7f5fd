package model

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidOperation    = errors.New("invalid operation type")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrCurrencyMismatch    = errors.New("accounts use different currencies")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateIdempotencyKey is returned by the store when a transaction row
	// with the same idempotency key already exists. The engine turns it into a replay.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrIdempotencyKeyReused    = errors.New("idempotency key already used by another caller")
	ErrInvalidIdempotencyKey   = errors.New("invalid idempotency key")

	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInvalidAPIKey     = errors.New("invalid api key")
	ErrInvalidWebhookURL = errors.New("invalid webhook url")
	ErrWebhookNotFound   = errors.New("webhook endpoint not found")
)

// InsufficientFundsError carries the attempted amount and the balance observed
// under the row lock.
type InsufficientFundsError struct {
	AccountID string
	Requested int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: requested %d, available %d",
		e.AccountID, e.Requested, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
