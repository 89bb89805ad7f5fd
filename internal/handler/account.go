package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/service"
	"LedgerApi/internal/validation"
)

// AccountHandler serves accounts and API key minting.
type AccountHandler struct {
	service service.AccountService
	logger  zerolog.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(service service.AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{service: service, logger: logger}
}

type createAPIKeyRequest struct {
	BusinessName string `json:"business_name"`
}

type createAPIKeyResponse struct {
	*model.APIKey
	Key string `json:"api_key"`
}

func (h *AccountHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key, raw, err := h.service.CreateAPIKey(r.Context(), req.BusinessName)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusCreated, createAPIKeyResponse{APIKey: key, Key: raw})
}

type createAccountRequest struct {
	Name           string `json:"account_name"`
	Currency       string `json:"currency"`
	InitialBalance int64  `json:"initial_balance_cents"`
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), service.CreateAccountRequest{
		OwnerID:        callerFromContext(r.Context()).ID,
		Name:           req.Name,
		Currency:       req.Currency,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if !validation.Var(accountID, "uuid") {
		sendErrorResponse(w, "Invalid account ID format", http.StatusBadRequest)
		return
	}

	account, err := h.service.GetAccount(r.Context(), callerFromContext(r.Context()).ID, accountID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, account)
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context(), callerFromContext(r.Context()).ID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, accounts)
}
