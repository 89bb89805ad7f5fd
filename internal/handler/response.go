package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/validation"
)

const maxBodyBytes = 1 << 20

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	sendErrorDetails(w, message, statusCode, nil)
}

func sendErrorDetails(w http.ResponseWriter, message string, statusCode int, details map[string]any) {
	body := map[string]any{
		"code":    statusCode,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, statusCode, map[string]any{"error": body})
}

func sendSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{"data": data})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendErrorResponse(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	return true
}

// validRequest checks req's validate tags and answers the request when they fail.
func validRequest(w http.ResponseWriter, logger zerolog.Logger, req any) bool {
	if err := validation.Struct(req); err != nil {
		sendServiceError(w, logger, err)
		return false
	}
	return true
}

// sendServiceError maps service errors onto HTTP statuses. Anything that is
// not a known domain error is logged and reported as a 500 without detail.
func sendServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var insufficient *model.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		sendErrorDetails(w, "Insufficient funds", http.StatusUnprocessableEntity, map[string]any{
			"account_id": insufficient.AccountID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
	case errors.Is(err, model.ErrInsufficientFunds):
		sendErrorResponse(w, "Insufficient funds", http.StatusUnprocessableEntity)
	case errors.Is(err, model.ErrInvalidAmount):
		sendErrorResponse(w, "Amount must be positive", http.StatusBadRequest)
	case errors.Is(err, model.ErrSameAccount):
		sendErrorResponse(w, "Cannot transfer to the same account", http.StatusBadRequest)
	case errors.Is(err, model.ErrCurrencyMismatch):
		sendErrorResponse(w, "Accounts use different currencies", http.StatusBadRequest)
	case errors.Is(err, model.ErrInvalidAccount),
		errors.Is(err, model.ErrInvalidWebhookURL),
		errors.Is(err, model.ErrInvalidIdempotencyKey),
		errors.Is(err, model.ErrInvalidOperation):
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrAccountNotFound):
		sendErrorResponse(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, model.ErrTransactionNotFound):
		sendErrorResponse(w, "Transaction not found", http.StatusNotFound)
	case errors.Is(err, model.ErrWebhookNotFound):
		sendErrorResponse(w, "Webhook endpoint not found", http.StatusNotFound)
	case errors.Is(err, model.ErrIdempotencyKeyReused):
		sendErrorResponse(w, "Idempotency key already used", http.StatusConflict)
	case errors.Is(err, model.ErrInvalidAPIKey):
		sendErrorResponse(w, "Invalid API key", http.StatusUnauthorized)
	default:
		logger.Error().Err(err).Msg("request failed")
		sendErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
