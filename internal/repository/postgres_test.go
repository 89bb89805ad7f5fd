package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsConstraintViolation(t *testing.T) {
	unique := &pq.Error{Code: pqUniqueViolation, Constraint: idempotencyKeyConstraint}
	check := &pq.Error{Code: pqCheckViolation, Constraint: "accounts_balance_non_negative"}

	testCases := []struct {
		name       string
		err        error
		code       string
		constraint string
		expected   bool
	}{
		{"Idempotency key conflict", unique, pqUniqueViolation, idempotencyKeyConstraint, true},
		{"Wrapped conflict", fmt.Errorf("insert: %w", unique), pqUniqueViolation, idempotencyKeyConstraint, true},
		{"Other unique constraint", &pq.Error{Code: pqUniqueViolation, Constraint: "accounts_pkey"}, pqUniqueViolation, idempotencyKeyConstraint, false},
		{"Any check constraint", check, pqCheckViolation, "", true},
		{"Wrong code", check, pqUniqueViolation, "", false},
		{"Not a postgres error", errors.New("boom"), pqUniqueViolation, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isConstraintViolation(tc.err, tc.code, tc.constraint))
		})
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	up, err := migrationFiles.ReadFile("migrations/000001_init.up.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(up), "CONSTRAINT transactions_idempotency_key_key UNIQUE")
	assert.Contains(t, string(up), "CHECK (balance_cents >= 0)")

	_, err = migrationFiles.ReadFile("migrations/000001_init.down.sql")
	assert.NoError(t, err)
}
