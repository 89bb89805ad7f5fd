package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"LedgerApi/internal/service"
	"LedgerApi/internal/validation"
)

const (
	idempotencyKeyHeader   = "Idempotency-Key"
	idempotentReplayHeader = "X-Idempotent-Replay"
)

// TransactionHandler serves the credit, debit and transfer endpoints.
type TransactionHandler struct {
	service service.LedgerService
	logger  zerolog.Logger
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(service service.LedgerService, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{service: service, logger: logger}
}

type singleAccountRequest struct {
	AccountID      string         `json:"account_id" validate:"required,uuid"`
	Amount         int64          `json:"amount_cents"`
	Description    string         `json:"description"`
	IdempotencyKey string         `json:"idempotency_key"`
	Metadata       map[string]any `json:"metadata"`
}

type transferRequest struct {
	FromAccountID  string         `json:"from_account_id" validate:"required,uuid"`
	ToAccountID    string         `json:"to_account_id" validate:"required,uuid"`
	Amount         int64          `json:"amount_cents"`
	Description    string         `json:"description"`
	IdempotencyKey string         `json:"idempotency_key"`
	Metadata       map[string]any `json:"metadata"`
}

func (h *TransactionHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req singleAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validRequest(w, h.logger, req) {
		return
	}

	result, err := h.service.Credit(r.Context(), service.CreditRequest{
		OwnerID:        callerFromContext(r.Context()).ID,
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Metadata:       req.Metadata,
	})
	h.respond(w, result, err)
}

func (h *TransactionHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req singleAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validRequest(w, h.logger, req) {
		return
	}

	result, err := h.service.Debit(r.Context(), service.DebitRequest{
		OwnerID:        callerFromContext(r.Context()).ID,
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Metadata:       req.Metadata,
	})
	h.respond(w, result, err)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validRequest(w, h.logger, req) {
		return
	}

	result, err := h.service.Transfer(r.Context(), service.TransferRequest{
		OwnerID:        callerFromContext(r.Context()).ID,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Metadata:       req.Metadata,
	})
	h.respond(w, result, err)
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "id")
	if !validation.Var(transactionID, "uuid") {
		sendErrorResponse(w, "Invalid transaction ID format", http.StatusBadRequest)
		return
	}

	t, err := h.service.GetTransaction(r.Context(), callerFromContext(r.Context()).ID, transactionID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, t)
}

// respond answers 201 for a new transaction and 200 for a replay.
func (h *TransactionHandler) respond(w http.ResponseWriter, result *service.Result, err error) {
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	if result.Replayed {
		w.Header().Set(idempotentReplayHeader, "true")
		sendSuccessResponse(w, http.StatusOK, result.Transaction)
		return
	}
	sendSuccessResponse(w, http.StatusCreated, result.Transaction)
}

// idempotencyKey prefers the Idempotency-Key header over the body field.
func idempotencyKey(r *http.Request, fromBody string) string {
	if key := r.Header.Get(idempotencyKeyHeader); key != "" {
		return key
	}
	return fromBody
}
