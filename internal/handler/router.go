package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"LedgerApi/internal/service"
)

// RouterConfig carries the services and settings the HTTP surface is built from.
type RouterConfig struct {
	Accounts       service.AccountService
	Ledger         service.LedgerService
	Webhooks       service.WebhookService
	Store          Pinger
	AdminToken     string
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// NewRouter builds the chi router for the public API.
func NewRouter(cfg RouterConfig) http.Handler {
	accounts := NewAccountHandler(cfg.Accounts, cfg.Logger)
	transactions := NewTransactionHandler(cfg.Ledger, cfg.Logger)
	webhooks := NewWebhookHandler(cfg.Webhooks, cfg.Logger)
	health := NewHealthHandler(cfg.Store, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(AdminToken(cfg.AdminToken)).Post("/api-keys", accounts.CreateAPIKey)

		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(cfg.Accounts, cfg.Logger))

			r.Post("/accounts", accounts.CreateAccount)
			r.Get("/accounts", accounts.ListAccounts)
			r.Get("/accounts/{id}", accounts.GetAccount)

			r.Post("/transactions/credit", transactions.Credit)
			r.Post("/transactions/debit", transactions.Debit)
			r.Post("/transactions/transfer", transactions.Transfer)
			r.Get("/transactions/{id}", transactions.GetTransaction)

			r.Post("/webhooks", webhooks.CreateWebhook)
			r.Get("/webhooks", webhooks.ListWebhooks)
			r.Delete("/webhooks/{id}", webhooks.DeleteWebhook)
		})
	})

	return otelhttp.NewHandler(r, "ledger-api")
}
