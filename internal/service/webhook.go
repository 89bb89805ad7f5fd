package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
	"LedgerApi/internal/validation"
)

const webhookSecretSize = 32

type createEndpointRequest struct {
	URL string `validate:"required,max=2048,url,webhookurl"`
}

// WebhookService registers the endpoints transaction events are delivered to.
type WebhookService interface {
	// CreateEndpoint returns the endpoint with its Secret set. This is the only
	// time the secret leaves the service.
	CreateEndpoint(ctx context.Context, ownerID, rawURL string) (*model.WebhookEndpoint, error)
	ListEndpoints(ctx context.Context, ownerID string) ([]model.WebhookEndpoint, error)
	DeactivateEndpoint(ctx context.Context, ownerID, endpointID string) error
}

type webhookService struct {
	repo   repository.WebhookRepository
	logger zerolog.Logger
}

// NewWebhookService creates a new webhook endpoint service.
func NewWebhookService(repo repository.WebhookRepository, logger zerolog.Logger) WebhookService {
	return &webhookService{repo: repo, logger: logger}
}

func (s *webhookService) CreateEndpoint(ctx context.Context, ownerID, rawURL string) (*model.WebhookEndpoint, error) {
	if err := ValidateWebhookURL(rawURL); err != nil {
		return nil, err
	}

	buf := make([]byte, webhookSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
	}

	e := &model.WebhookEndpoint{
		OwnerID: ownerID,
		URL:     rawURL,
		Secret:  hex.EncodeToString(buf),
		Active:  true,
	}
	if err := s.repo.CreateWebhookEndpoint(ctx, e); err != nil {
		return nil, classify(err)
	}
	s.logger.Info().Str("endpoint_id", e.ID).Str("url", e.URL).Msg("webhook endpoint registered")
	return e, nil
}

func (s *webhookService) ListEndpoints(ctx context.Context, ownerID string) ([]model.WebhookEndpoint, error) {
	endpoints, err := s.repo.ListActiveWebhookEndpoints(ctx, ownerID)
	if err != nil {
		return nil, classify(err)
	}
	return endpoints, nil
}

func (s *webhookService) DeactivateEndpoint(ctx context.Context, ownerID, endpointID string) error {
	if err := s.repo.DeactivateWebhookEndpoint(ctx, ownerID, endpointID); err != nil {
		return classify(err)
	}
	s.logger.Info().Str("endpoint_id", endpointID).Msg("webhook endpoint deactivated")
	return nil
}

// ValidateWebhookURL accepts https URLs, and plain http only for local hosts.
func ValidateWebhookURL(rawURL string) error {
	return validation.Struct(createEndpointRequest{URL: rawURL})
}
