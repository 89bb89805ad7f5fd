package repository

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"LedgerApi/internal/model"
)

// rowLock is a context-aware mutex standing in for a database row lock.
type rowLock chan struct{}

func newRowLock() rowLock {
	return make(rowLock, 1)
}

func (l rowLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l rowLock) release() {
	<-l
}

// MemoryRepository keeps the ledger in process memory. It honours the same
// locking and uniqueness contract as PostgresRepository: account rows and
// idempotency keys are held by the atomic unit that touched them until it
// commits or rolls back.
type MemoryRepository struct {
	mu           sync.Mutex
	accounts     map[string]model.Account
	accountLocks map[string]rowLock
	keyLocks     map[string]rowLock
	transactions map[string]model.Transaction
	byKey        map[string]string
	apiKeys      map[string]model.APIKey
	endpoints    map[string]model.WebhookEndpoint
	events       []model.WebhookEvent
}

// NewMemoryRepository creates an empty in-process store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[string]model.Account),
		accountLocks: make(map[string]rowLock),
		keyLocks:     make(map[string]rowLock),
		transactions: make(map[string]model.Transaction),
		byKey:        make(map[string]string),
		apiKeys:      make(map[string]model.APIKey),
		endpoints:    make(map[string]model.WebhookEndpoint),
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) BeginAtomic(ctx context.Context) (AtomicTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &memoryTx{
		repo:     r,
		locked:   make(map[string]bool),
		balances: make(map[string]int64),
	}, nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[a.ID]; exists {
		return fmt.Errorf("failed to create account: id %s already exists", a.ID)
	}
	r.accounts[a.ID] = *a
	r.accountLocks[a.ID] = newRowLock()
	return nil
}

func (r *MemoryRepository) GetAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.OwnerID != ownerID {
		return nil, model.ErrAccountNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]model.Account, 0)
	for _, a := range r.accounts {
		if a.OwnerID == ownerID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *MemoryRepository) CreateAPIKey(ctx context.Context, k *model.APIKey) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.apiKeys[k.KeyHash]; exists {
		return fmt.Errorf("failed to create api key: hash already registered")
	}
	r.apiKeys[k.KeyHash] = *k
	return nil
}

func (r *MemoryRepository) FindAPIKeyByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.apiKeys[keyHash]
	if !ok || !k.Active {
		return nil, model.ErrInvalidAPIKey
	}
	return &k, nil
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, ownerID, transactionID string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[transactionID]
	if !ok || t.OwnerID != ownerID {
		return nil, model.ErrTransactionNotFound
	}
	return cloneTransaction(t), nil
}

func (r *MemoryRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, model.ErrTransactionNotFound
	}
	return cloneTransaction(r.transactions[id]), nil
}

// Transactions returns a snapshot of every committed transaction.
func (r *MemoryRepository) Transactions() []model.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Transaction, 0, len(r.transactions))
	for _, t := range r.transactions {
		out = append(out, *cloneTransaction(t))
	}
	return out
}

func (r *MemoryRepository) CreateWebhookEndpoint(ctx context.Context, e *model.WebhookEndpoint) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[e.ID] = *e
	return nil
}

func (r *MemoryRepository) ListActiveWebhookEndpoints(ctx context.Context, ownerID string) ([]model.WebhookEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	endpoints := make([]model.WebhookEndpoint, 0)
	for _, e := range r.endpoints {
		if e.OwnerID == ownerID && e.Active {
			endpoints = append(endpoints, e)
		}
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].CreatedAt.After(endpoints[j].CreatedAt)
	})
	return endpoints, nil
}

func (r *MemoryRepository) DeactivateWebhookEndpoint(ctx context.Context, ownerID, endpointID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.endpoints[endpointID]
	if !ok || e.OwnerID != ownerID {
		return model.ErrWebhookNotFound
	}
	e.Active = false
	r.endpoints[endpointID] = e
	return nil
}

func (r *MemoryRepository) InsertWebhookEvent(ctx context.Context, ev *model.WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

// WebhookEvents returns a snapshot of recorded delivery attempts.
func (r *MemoryRepository) WebhookEvents() []model.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.WebhookEvent(nil), r.events...)
}

type memoryTx struct {
	repo     *MemoryRepository
	held     []rowLock
	locked   map[string]bool
	balances map[string]int64
	inserted []model.Transaction
	done     bool
}

func (tx *memoryTx) LockAccount(ctx context.Context, accountID string) (*model.Account, error) {
	if tx.done {
		return nil, sql.ErrTxDone
	}
	r := tx.repo

	if !tx.locked[accountID] {
		r.mu.Lock()
		lock, ok := r.accountLocks[accountID]
		r.mu.Unlock()
		if !ok {
			return nil, model.ErrAccountNotFound
		}
		if err := lock.acquire(ctx); err != nil {
			return nil, fmt.Errorf("failed to lock account %s: %w", accountID, err)
		}
		tx.held = append(tx.held, lock)
		tx.locked[accountID] = true
	}

	r.mu.Lock()
	a := r.accounts[accountID]
	r.mu.Unlock()
	if balance, ok := tx.balances[accountID]; ok {
		a.Balance = balance
	}
	return &a, nil
}

func (tx *memoryTx) WriteAccountBalance(ctx context.Context, accountID string, balance int64) error {
	if tx.done {
		return sql.ErrTxDone
	}
	if !tx.locked[accountID] {
		return fmt.Errorf("balance update failed: account %s is not locked", accountID)
	}
	if balance < 0 {
		return fmt.Errorf("balance update failed: %w", model.ErrInsufficientFunds)
	}
	tx.balances[accountID] = balance
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	if tx.done {
		return sql.ErrTxDone
	}
	if err := checkTransaction(t); err != nil {
		return err
	}
	r := tx.repo

	if t.IdempotencyKey != nil {
		key := *t.IdempotencyKey
		r.mu.Lock()
		lock, ok := r.keyLocks[key]
		if !ok {
			lock = newRowLock()
			r.keyLocks[key] = lock
		}
		r.mu.Unlock()

		if err := lock.acquire(ctx); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		tx.held = append(tx.held, lock)

		r.mu.Lock()
		_, taken := r.byKey[key]
		r.mu.Unlock()
		if taken {
			return model.ErrDuplicateIdempotencyKey
		}
	}

	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	if t.Status == "" {
		t.Status = model.StatusCompleted
	}
	tx.inserted = append(tx.inserted, *t)
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	r := tx.repo
	now := time.Now().UTC()

	r.mu.Lock()
	for id, balance := range tx.balances {
		a := r.accounts[id]
		a.Balance = balance
		a.UpdatedAt = now
		r.accounts[id] = a
	}
	for _, t := range tx.inserted {
		r.transactions[t.ID] = t
		if t.IdempotencyKey != nil {
			r.byKey[*t.IdempotencyKey] = t.ID
		}
	}
	r.mu.Unlock()

	tx.release()
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.release()
	return nil
}

func (tx *memoryTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].release()
	}
	tx.held = nil
}

// checkTransaction mirrors the CHECK constraints of the transactions table.
func checkTransaction(t *model.Transaction) error {
	if t.Amount <= 0 {
		return fmt.Errorf("failed to insert transaction: %w", model.ErrInvalidAmount)
	}
	switch t.Type {
	case model.Credit:
		if t.FromAccountID != nil || t.ToAccountID == nil {
			return fmt.Errorf("failed to insert transaction: credit needs only a destination: %w", model.ErrInvalidAccount)
		}
	case model.Debit:
		if t.FromAccountID == nil || t.ToAccountID != nil {
			return fmt.Errorf("failed to insert transaction: debit needs only a source: %w", model.ErrInvalidAccount)
		}
	case model.Transfer:
		if t.FromAccountID == nil || t.ToAccountID == nil {
			return fmt.Errorf("failed to insert transaction: transfer needs both accounts: %w", model.ErrInvalidAccount)
		}
		if *t.FromAccountID == *t.ToAccountID {
			return model.ErrSameAccount
		}
	default:
		return model.ErrInvalidOperation
	}
	return nil
}

func cloneTransaction(t model.Transaction) *model.Transaction {
	t.Metadata = maps.Clone(t.Metadata)
	return &t
}
