package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
	"LedgerApi/internal/repository"
	"LedgerApi/internal/validation"
)

const (
	apiKeyPrefix     = "sk_live_"
	apiKeyRandomSize = 32
)

// AccountService manages accounts and the API keys that own them.
type AccountService interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*model.Account, error)
	GetAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error)
	// CreateAPIKey returns the stored key and the raw key, which is never
	// recoverable afterwards.
	CreateAPIKey(ctx context.Context, businessName string) (*model.APIKey, string, error)
	Authenticate(ctx context.Context, rawKey string) (*model.APIKey, error)
}

// CreateAccountRequest opens an account for OwnerID. An empty Currency means
// model.DefaultCurrency.
type CreateAccountRequest struct {
	OwnerID        string
	Name           string `validate:"required,max=255"`
	Currency       string `validate:"len=3,alpha,uppercase"`
	InitialBalance int64  `validate:"gte=0"`
}

type createAPIKeyRequest struct {
	BusinessName string `validate:"required,max=255"`
}

type accountService struct {
	repo   repository.AccountRepository
	logger zerolog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(repo repository.AccountRepository, logger zerolog.Logger) AccountService {
	return &accountService{repo: repo, logger: logger}
}

func (s *accountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*model.Account, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Currency == "" {
		req.Currency = model.DefaultCurrency
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	a := &model.Account{
		OwnerID:  req.OwnerID,
		Name:     req.Name,
		Balance:  req.InitialBalance,
		Currency: req.Currency,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, classify(err)
	}
	s.logger.Info().Str("account_id", a.ID).Str("currency", a.Currency).Msg("account created")
	return a, nil
}

func (s *accountService) GetAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error) {
	a, err := s.repo.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, classify(err)
	}
	return a, nil
}

func (s *accountService) ListAccounts(ctx context.Context, ownerID string) ([]model.Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, classify(err)
	}
	return accounts, nil
}

func (s *accountService) CreateAPIKey(ctx context.Context, businessName string) (*model.APIKey, string, error) {
	businessName = strings.TrimSpace(businessName)
	if err := validation.Struct(createAPIKeyRequest{BusinessName: businessName}); err != nil {
		return nil, "", err
	}

	buf := make([]byte, apiKeyRandomSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("failed to generate api key: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(buf)

	k := &model.APIKey{
		KeyHash:      HashAPIKey(raw),
		BusinessName: businessName,
		Active:       true,
	}
	if err := s.repo.CreateAPIKey(ctx, k); err != nil {
		return nil, "", classify(err)
	}
	s.logger.Info().Str("api_key_id", k.ID).Msg("api key created")
	return k, raw, nil
}

func (s *accountService) Authenticate(ctx context.Context, rawKey string) (*model.APIKey, error) {
	if !strings.HasPrefix(rawKey, apiKeyPrefix) {
		return nil, model.ErrInvalidAPIKey
	}
	k, err := s.repo.FindAPIKeyByHash(ctx, HashAPIKey(rawKey))
	if err != nil {
		return nil, classify(err)
	}
	return k, nil
}

// HashAPIKey is the stored form of a raw key: lower-case hex SHA-256.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
