package model

import (
	"time"
)

// DefaultCurrency is used when an account is opened without one.
const DefaultCurrency = "USD"

// Account holds a balance in integer minor units of Currency.
type Account struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Name      string    `json:"account_name"`
	Balance   int64     `json:"balance_cents"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKey identifies a caller. Its ID is the owner scope of accounts,
// transactions and webhook endpoints.
type APIKey struct {
	ID           string    `json:"id"`
	KeyHash      string    `json:"-"`
	BusinessName string    `json:"business_name"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
