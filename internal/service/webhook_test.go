package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
	"LedgerApi/internal/service"
)

func TestValidateWebhookURL(t *testing.T) {
	testCases := []struct {
		url   string
		valid bool
	}{
		{"https://example.com/hooks", true},
		{"http://localhost:9000/hook", true},
		{"http://127.0.0.1/hook", true},
		{"http://0.0.0.0:8080", true},
		{"http://example.com/hook", false},
		{"ftp://example.com", false},
		{"not a url", false},
		{"/relative/path", false},
		{"https://example.com/" + strings.Repeat("a", 2048), false},
	}

	for _, tc := range testCases {
		t.Run(tc.url[:min(len(tc.url), 40)], func(t *testing.T) {
			err := service.ValidateWebhookURL(tc.url)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrInvalidWebhookURL)
			}
		})
	}
}

func TestWebhookService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	webhooks := service.NewWebhookService(repository.NewMemoryRepository(), zerolog.Nop())
	owner := uuid.NewString()

	e, err := webhooks.CreateEndpoint(ctx, owner, "https://example.com/hook")
	require.NoError(t, err)
	assert.Len(t, e.Secret, 64)
	assert.True(t, e.Active)

	other, err := webhooks.CreateEndpoint(ctx, owner, "https://example.com/other")
	require.NoError(t, err)
	assert.NotEqual(t, e.Secret, other.Secret)

	list, err := webhooks.ListEndpoints(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, webhooks.DeactivateEndpoint(ctx, owner, e.ID))
	assert.ErrorIs(t, webhooks.DeactivateEndpoint(ctx, uuid.NewString(), other.ID), model.ErrWebhookNotFound)

	list, err = webhooks.ListEndpoints(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	_, err = webhooks.CreateEndpoint(ctx, owner, "http://example.com")
	assert.ErrorIs(t, err, model.ErrInvalidWebhookURL)
}
