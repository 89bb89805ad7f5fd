package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/service"
	"LedgerApi/internal/validation"
)

// WebhookHandler serves webhook endpoint registration.
type WebhookHandler struct {
	service service.WebhookService
	logger  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.WebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

type createWebhookRequest struct {
	URL string `json:"url"`
}

// createWebhookResponse is the only representation that carries the secret.
type createWebhookResponse struct {
	*model.WebhookEndpoint
	Secret string `json:"secret"`
}

func (h *WebhookHandler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	endpoint, err := h.service.CreateEndpoint(r.Context(), callerFromContext(r.Context()).ID, req.URL)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusCreated, createWebhookResponse{
		WebhookEndpoint: endpoint,
		Secret:          endpoint.Secret,
	})
}

func (h *WebhookHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.service.ListEndpoints(r.Context(), callerFromContext(r.Context()).ID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	sendSuccessResponse(w, http.StatusOK, endpoints)
}

func (h *WebhookHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "id")
	if !validation.Var(endpointID, "uuid") {
		sendErrorResponse(w, "Invalid webhook ID format", http.StatusBadRequest)
		return
	}

	if err := h.service.DeactivateEndpoint(r.Context(), callerFromContext(r.Context()).ID, endpointID); err != nil {
		sendServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
