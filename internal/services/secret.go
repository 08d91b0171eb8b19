package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/crypto"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

// SecretService stores per-(project, provider) credential blobs encrypted
// at rest and decrypts them transiently per outbound call. Plaintext never
// lives beyond the request that needed it.
type SecretService interface {
	Store(ctx context.Context, projectID uuid.UUID, provider, value string) (*types.Secret, error)
	GetDecrypted(ctx context.Context, projectID uuid.UUID, provider string) (string, error)
	ListProviders(ctx context.Context, projectID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, projectID uuid.UUID, provider string) error
}

type secretService struct {
	log        *logger.Logger
	secretRepo repos.SecretRepo
	vault      *crypto.Vault
}

func NewSecretService(baseLog *logger.Logger, secretRepo repos.SecretRepo, vault *crypto.Vault) SecretService {
	return &secretService{
		log:        baseLog.With("service", "SecretService"),
		secretRepo: secretRepo,
		vault:      vault,
	}
}

func (s *secretService) Store(ctx context.Context, projectID uuid.UUID, provider, value string) (*types.Secret, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return nil, apierr.Configuration("provider is required")
	}
	if strings.TrimSpace(value) == "" {
		return nil, apierr.Configuration("credential value is required")
	}
	token, err := s.vault.Encrypt(value)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	secret := &types.Secret{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Provider:       provider,
		EncryptedValue: token,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.secretRepo.Upsert(ctx, nil, secret); err != nil {
		s.log.Error("Secret upsert failed", "project_id", projectID, "provider", provider, "error", err)
		return nil, err
	}
	s.log.Info("Stored credentials", "project_id", projectID, "provider", provider, "encrypted", s.vault.Enabled())
	return secret, nil
}

func (s *secretService) GetDecrypted(ctx context.Context, projectID uuid.UUID, provider string) (string, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	secret, err := s.secretRepo.GetByProjectAndProvider(ctx, nil, projectID, provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apierr.NotFound("credentials not found for provider %s", provider)
		}
		return "", err
	}
	return s.vault.Decrypt(secret.EncryptedValue)
}

func (s *secretService) ListProviders(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	return s.secretRepo.ListProviders(ctx, nil, projectID)
}

func (s *secretService) Delete(ctx context.Context, projectID uuid.UUID, provider string) error {
	return s.secretRepo.DeleteByProjectAndProvider(ctx, nil, projectID, strings.TrimSpace(strings.ToLower(provider)))
}
