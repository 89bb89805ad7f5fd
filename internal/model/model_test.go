package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerApi/internal/model"
)

func TestInsufficientFundsError_Is(t *testing.T) {
	err := fmt.Errorf("debit: %w", &model.InsufficientFundsError{AccountID: "a", Requested: 500, Available: 100})

	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.NotErrorIs(t, err, model.ErrInvalidAmount)

	var target *model.InsufficientFundsError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, int64(500), target.Requested)
	assert.Equal(t, int64(100), target.Available)
	assert.Contains(t, err.Error(), "requested 500, available 100")
}

func TestTransaction_Accounts(t *testing.T) {
	from, to := "from", "to"

	assert.Equal(t, []string{"to"}, (&model.Transaction{Type: model.Credit, ToAccountID: &to}).Accounts())
	assert.Equal(t, []string{"from"}, (&model.Transaction{Type: model.Debit, FromAccountID: &from}).Accounts())
	assert.Equal(t, []string{"from", "to"}, (&model.Transaction{Type: model.Transfer, FromAccountID: &from, ToAccountID: &to}).Accounts())
}

func TestTransactionType_Valid(t *testing.T) {
	assert.True(t, model.Credit.Valid())
	assert.True(t, model.Debit.Valid())
	assert.True(t, model.Transfer.Valid())
	assert.False(t, model.TransactionType("refund").Valid())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, model.StringPtr(""))
	require.NotNil(t, model.StringPtr("x"))
	assert.Equal(t, "x", *model.StringPtr("x"))
}

func TestNewWebhookPayload_WireFormat(t *testing.T) {
	to := "acc-1"
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	sentAt := time.Date(2025, 1, 2, 5, 4, 5, 0, time.FixedZone("X", 2*3600))

	payload := model.NewWebhookPayload("evt-1", sentAt, model.Transaction{
		ID:          "tx-1",
		OwnerID:     "owner",
		Type:        model.Credit,
		ToAccountID: &to,
		Amount:      2500,
		Currency:    "USD",
		Status:      model.StatusCompleted,
		CreatedAt:   created,
	})

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	s := string(body)
	assert.True(t, strings.HasPrefix(s, `{"event_id":"evt-1","event_type":"transaction.completed","timestamp":"2025-01-02T03:04:05Z","data":{"transaction":{`))
	assert.Contains(t, s, `"id":"tx-1","type":"credit","from_account_id":null,"to_account_id":"acc-1","amount_cents":2500`)
	assert.NotContains(t, s, "owner")
}

func TestTransaction_JSONHidesInternalFields(t *testing.T) {
	to := "acc-1"
	tx := model.Transaction{
		ID:             "tx-1",
		OwnerID:        "owner-1",
		IdempotencyKey: model.StringPtr("key-1"),
		Type:           model.Credit,
		ToAccountID:    &to,
		Amount:         100,
		Currency:       "USD",
		Status:         model.StatusCompleted,
		Metadata:       map[string]any{"order": "42"},
	}

	b, err := json.Marshal(tx)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Equal(t, "tx-1", fields["id"])
	assert.NotContains(t, fields, "metadata")
	assert.NotContains(t, fields, "idempotency_key")
	assert.NotContains(t, fields, "owner_id")
}
