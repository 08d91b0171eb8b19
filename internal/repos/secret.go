package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

type SecretRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, s *types.Secret) (*types.Secret, error)
	GetByProjectAndProvider(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, provider string) (*types.Secret, error)
	ListProviders(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]string, error)
	DeleteByProjectAndProvider(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, provider string) error
}

type secretRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSecretRepo(db *gorm.DB, baseLog *logger.Logger) SecretRepo {
	return &secretRepo{db: db, log: baseLog.With("repo", "SecretRepo")}
}

// Upsert writes the secret for (project, provider), replacing any existing
// row. The unique index makes the pair the conflict target, so two writes
// for the same pair always collapse to one row with the later value.
func (r *secretRepo) Upsert(ctx context.Context, tx *gorm.DB, s *types.Secret) (*types.Secret, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	s.UpdatedAt = time.Now()
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}, {Name: "provider"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"encrypted_value": s.EncryptedValue,
				"updated_at":      s.UpdatedAt,
			}),
		}).
		Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *secretRepo) GetByProjectAndProvider(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, provider string) (*types.Secret, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.Secret
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND provider = ?", projectID, provider).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *secretRepo) ListProviders(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var providers []string
	if err := transaction.WithContext(ctx).
		Model(&types.Secret{}).
		Where("project_id = ?", projectID).
		Order("provider ASC").
		Pluck("provider", &providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *secretRepo) DeleteByProjectAndProvider(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, provider string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("project_id = ? AND provider = ?", projectID, provider).
		Delete(&types.Secret{}).Error
}
