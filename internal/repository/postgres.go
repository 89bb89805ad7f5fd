package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"LedgerApi/internal/model"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"

	idempotencyKeyConstraint = "transactions_idempotency_key_key"
)

const accountColumns = `id, owner_id, account_name, balance_cents, currency, created_at, updated_at`

const transactionColumns = `id, owner_id, idempotency_key, transaction_type, from_account_id, to_account_id,
	amount_cents, currency, description, status, metadata, created_at`

// PostgresRepository is the Postgres-backed ledger store.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a store on an already opened pool. The
// schema is expected to be migrated.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) BeginAtomic(ctx context.Context) (AtomicTx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (id, owner_id, account_name, balance_cents, currency)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		a.ID, a.OwnerID, a.Name, a.Balance, a.Currency,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error) {
	if uuid.Validate(accountID) != nil {
		return nil, model.ErrAccountNotFound
	}
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND owner_id = $2`,
		accountID, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 ORDER BY created_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, k *model.APIKey) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO api_keys (id, key_hash, business_name, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		k.ID, k.KeyHash, k.BusinessName, k.Active,
	).Scan(&k.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindAPIKeyByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	var k model.APIKey
	err := r.db.QueryRowContext(ctx,
		`SELECT id, key_hash, business_name, is_active, created_at
		 FROM api_keys WHERE key_hash = $1 AND is_active = true`,
		keyHash,
	).Scan(&k.ID, &k.KeyHash, &k.BusinessName, &k.Active, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to find api key: %w", err)
	}
	return &k, nil
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, ownerID, transactionID string) (*model.Transaction, error) {
	if uuid.Validate(transactionID) != nil {
		return nil, model.ErrTransactionNotFound
	}
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND owner_id = $2`,
		transactionID, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`,
		key,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by idempotency key: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) CreateWebhookEndpoint(ctx context.Context, e *model.WebhookEndpoint) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO webhook_endpoints (id, owner_id, url, secret, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		e.ID, e.OwnerID, e.URL, e.Secret, e.Active,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook endpoint: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveWebhookEndpoints(ctx context.Context, ownerID string) ([]model.WebhookEndpoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, url, secret, is_active, created_at
		 FROM webhook_endpoints
		 WHERE owner_id = $1 AND is_active = true
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := make([]model.WebhookEndpoint, 0)
	for rows.Next() {
		var e model.WebhookEndpoint
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.URL, &e.Secret, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

func (r *PostgresRepository) DeactivateWebhookEndpoint(ctx context.Context, ownerID, endpointID string) error {
	if uuid.Validate(endpointID) != nil {
		return model.ErrWebhookNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_endpoints SET is_active = false WHERE id = $1 AND owner_id = $2`,
		endpointID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate webhook endpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate webhook endpoint: %w", err)
	}
	if n == 0 {
		return model.ErrWebhookNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertWebhookEvent(ctx context.Context, ev *model.WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, webhook_endpoint_id, transaction_id, payload, sent_at, response_status, response_body)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.EndpointID, ev.TransactionID, string(ev.Payload), ev.SentAt, ev.ResponseStatus, ev.ResponseBody,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

// LockAccount takes FOR NO KEY UPDATE rather than FOR UPDATE: the foreign keys
// on transactions hold KEY SHARE locks on the same rows, and FOR UPDATE would
// conflict with them across concurrent transfers.
func (t *postgresTx) LockAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if uuid.Validate(accountID) != nil {
		return nil, model.ErrAccountNotFound
	}
	a, err := scanAccount(t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR NO KEY UPDATE`,
		accountID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account %s: %w", accountID, err)
	}
	return a, nil
}

func (t *postgresTx) WriteAccountBalance(ctx context.Context, accountID string, balance int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = $1, updated_at = NOW() WHERE id = $2`,
		balance, accountID,
	)
	if err != nil {
		if isConstraintViolation(err, pqCheckViolation, "") {
			return fmt.Errorf("balance update failed: %w", model.ErrInsufficientFunds)
		}
		return fmt.Errorf("balance update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("balance update failed: %w", err)
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	var metadata sql.NullString
	if txn.Metadata != nil {
		b, err := json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode transaction metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	if txn.Status == "" {
		txn.Status = model.StatusCompleted
	}

	id := uuid.NewString()
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO transactions (id, owner_id, idempotency_key, transaction_type, from_account_id,
			to_account_id, amount_cents, currency, description, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		id, txn.OwnerID, txn.IdempotencyKey, string(txn.Type), txn.FromAccountID,
		txn.ToAccountID, txn.Amount, txn.Currency, txn.Description, txn.Status, metadata,
	).Scan(&txn.CreatedAt)
	if err != nil {
		if isConstraintViolation(err, pqUniqueViolation, idempotencyKeyConstraint) {
			return model.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	txn.ID = id
	return nil
}

func (t *postgresTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func (t *postgresTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// isConstraintViolation reports whether err is a postgres error with the given
// SQLSTATE code. An empty constraint matches any constraint name.
func isConstraintViolation(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*model.Account, error) {
	var a model.Account
	if err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanTransaction(s scanner) (*model.Transaction, error) {
	var (
		t                          model.Transaction
		txType                     string
		key, from, to, description sql.NullString
		metadata                   []byte
	)
	err := s.Scan(&t.ID, &t.OwnerID, &key, &txType, &from, &to,
		&t.Amount, &t.Currency, &description, &t.Status, &metadata, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = model.TransactionType(txType)
	t.IdempotencyKey = nullableString(key)
	t.FromAccountID = nullableString(from)
	t.ToAccountID = nullableString(to)
	t.Description = nullableString(description)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode transaction metadata: %w", err)
		}
	}
	return &t, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
