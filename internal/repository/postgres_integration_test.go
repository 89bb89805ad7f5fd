//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
)

func setupPostgres(t *testing.T) *repository.PostgresRepository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, repository.RunMigrations(dsn, zerolog.Nop()))
	// Second run is a no-op.
	require.NoError(t, repository.RunMigrations(dsn, zerolog.Nop()))

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return repository.NewPostgresRepository(db)
}

func seedOwner(t *testing.T, repo *repository.PostgresRepository) string {
	t.Helper()
	k := &model.APIKey{KeyHash: time.Now().Format(time.RFC3339Nano), BusinessName: "Acme", Active: true}
	require.NoError(t, repo.CreateAPIKey(context.Background(), k))
	return k.ID
}

func seedAccount(t *testing.T, repo *repository.PostgresRepository, owner string, balance int64) *model.Account {
	t.Helper()
	a := &model.Account{OwnerID: owner, Name: "test", Balance: balance, Currency: "USD"}
	require.NoError(t, repo.CreateAccount(context.Background(), a))
	return a
}

func TestIntegration_Postgres_AtomicUnit(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	owner := seedOwner(t, repo)
	a := seedAccount(t, repo, owner, 1000)

	tx, err := repo.BeginAtomic(ctx)
	require.NoError(t, err)

	from := a.ID
	record := &model.Transaction{
		OwnerID:        owner,
		IdempotencyKey: model.StringPtr("pg-key"),
		Type:           model.Debit,
		FromAccountID:  &from,
		Amount:         300,
		Currency:       "USD",
		Metadata:       map[string]any{"ref": "abc"},
	}
	require.NoError(t, tx.InsertTransaction(ctx, record))

	locked, err := tx.LockAccount(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, tx.WriteAccountBalance(ctx, a.ID, locked.Balance-300))
	require.NoError(t, tx.Commit())

	got, err := repo.GetAccount(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Balance)

	stored, err := repo.FindTransactionByIdempotencyKey(ctx, "pg-key")
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
	assert.Equal(t, "abc", stored.Metadata["ref"])
	assert.Nil(t, stored.ToAccountID)

	tx, err = repo.BeginAtomic(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	record.ID = ""
	assert.ErrorIs(t, tx.InsertTransaction(ctx, record), model.ErrDuplicateIdempotencyKey)
}

func TestIntegration_Postgres_CheckConstraintBacksBalance(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	a := seedAccount(t, repo, seedOwner(t, repo), 10)

	tx, err := repo.BeginAtomic(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.LockAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.WriteAccountBalance(ctx, a.ID, -5), model.ErrInsufficientFunds)
}

func TestIntegration_Postgres_RowLockSerializesWriters(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	owner := seedOwner(t, repo)
	a := seedAccount(t, repo, owner, 0)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := repo.BeginAtomic(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer tx.Rollback()
			locked, err := tx.LockAccount(ctx, a.ID)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, tx.WriteAccountBalance(ctx, a.ID, locked.Balance+10))
			assert.NoError(t, tx.Commit())
		}()
	}
	wg.Wait()

	got, err := repo.GetAccount(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*10), got.Balance)
}

func TestIntegration_Postgres_WebhookEvents(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	owner := seedOwner(t, repo)
	a := seedAccount(t, repo, owner, 0)

	e := &model.WebhookEndpoint{OwnerID: owner, URL: "https://example.com/hook", Secret: "s", Active: true}
	require.NoError(t, repo.CreateWebhookEndpoint(ctx, e))

	active, err := repo.ListActiveWebhookEndpoints(ctx, owner)
	require.NoError(t, err)
	require.Len(t, active, 1)

	tx, err := repo.BeginAtomic(ctx)
	require.NoError(t, err)
	to := a.ID
	record := &model.Transaction{OwnerID: owner, Type: model.Credit, ToAccountID: &to, Amount: 1, Currency: "USD"}
	require.NoError(t, tx.InsertTransaction(ctx, record))
	require.NoError(t, tx.Commit())

	status := 200
	body := "ok"
	require.NoError(t, repo.InsertWebhookEvent(ctx, &model.WebhookEvent{
		EndpointID:     e.ID,
		TransactionID:  record.ID,
		Payload:        []byte(`{"event_id":"x"}`),
		ResponseStatus: &status,
		ResponseBody:   &body,
	}))

	require.NoError(t, repo.DeactivateWebhookEndpoint(ctx, owner, e.ID))
	active, err = repo.ListActiveWebhookEndpoints(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, active)
}
