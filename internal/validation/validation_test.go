package validation_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerApi/internal/model"
	"LedgerApi/internal/validation"
)

type transferBody struct {
	FromAccountID  string `json:"from_account_id" validate:"required,uuid"`
	ToAccountID    string `json:"to_account_id" validate:"required,uuid,nefield=FromAccountID"`
	Amount         int64  `json:"amount_cents" validate:"gt=0"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=255"`
}

type endpointBody struct {
	URL string `validate:"required,max=2048,url,webhookurl"`
}

type accountBody struct {
	Name           string `validate:"required,max=255"`
	Currency       string `validate:"len=3,alpha,uppercase"`
	InitialBalance int64  `validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	from, to := uuid.NewString(), uuid.NewString()

	testCases := []struct {
		name            string
		payload         any
		expectedErr     error
		expectedMessage string
	}{
		{
			name:    "Valid transfer",
			payload: transferBody{FromAccountID: from, ToAccountID: to, Amount: 1},
		},
		{
			name:            "Missing source account",
			payload:         transferBody{ToAccountID: to, Amount: 1},
			expectedErr:     model.ErrInvalidAccount,
			expectedMessage: "invalid account: 'from_account_id' is required",
		},
		{
			name:            "Malformed account id",
			payload:         transferBody{FromAccountID: "nope", ToAccountID: to, Amount: 1},
			expectedErr:     model.ErrInvalidAccount,
			expectedMessage: "invalid account: 'from_account_id' must be a valid UUID",
		},
		{
			name:            "Same account",
			payload:         transferBody{FromAccountID: from, ToAccountID: from, Amount: 1},
			expectedErr:     model.ErrSameAccount,
			expectedMessage: "cannot transfer to the same account: 'to_account_id' must differ from from_account_id",
		},
		{
			name:            "Zero amount",
			payload:         transferBody{FromAccountID: from, ToAccountID: to},
			expectedErr:     model.ErrInvalidAmount,
			expectedMessage: "invalid amount: 'amount_cents' must be greater than 0",
		},
		{
			name:        "Idempotency key too long",
			payload:     transferBody{FromAccountID: from, ToAccountID: to, Amount: 1, IdempotencyKey: strings.Repeat("k", 256)},
			expectedErr: model.ErrInvalidIdempotencyKey,
		},
		{
			name:            "Lower-case currency",
			payload:         accountBody{Name: "Main", Currency: "usd"},
			expectedErr:     model.ErrInvalidAccount,
			expectedMessage: "invalid account: 'currency' must be upper-case",
		},
		{
			name:        "Numeric currency",
			payload:     accountBody{Name: "Main", Currency: "123"},
			expectedErr: model.ErrInvalidAccount,
		},
		{
			name:            "Negative initial balance",
			payload:         accountBody{Name: "Main", Currency: "USD", InitialBalance: -1},
			expectedErr:     model.ErrInvalidAmount,
			expectedMessage: "invalid amount: 'initial_balance' must be at least 0",
		},
		{
			name:            "Plain http to a remote host",
			payload:         endpointBody{URL: "http://example.com/hook"},
			expectedErr:     model.ErrInvalidWebhookURL,
			expectedMessage: "invalid webhook url: 'url' must use https, or http on localhost",
		},
		{
			name:    "Plain http to localhost",
			payload: endpointBody{URL: "http://localhost:9000/hook"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validation.Struct(tc.payload)
			if tc.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.expectedErr)
			if tc.expectedMessage != "" {
				assert.Equal(t, tc.expectedMessage, err.Error())
			}
		})
	}
}

func TestVar(t *testing.T) {
	assert.True(t, validation.Var(uuid.NewString(), "uuid"))
	assert.False(t, validation.Var("not-a-uuid", "uuid"))
	assert.False(t, validation.Var("", "uuid"))
}

func TestGet_Shared(t *testing.T) {
	first, err := validation.Get()
	require.NoError(t, err)
	second, err := validation.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
}
