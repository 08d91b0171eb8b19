package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

type IntegrationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, in *types.Integration) (*types.Integration, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) (*types.Integration, error)
	ListByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Integration, error)
	GetActiveByProjectAndType(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, integrationType string) (*types.Integration, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID, fields map[string]interface{}) error
	DeactivateOtherTrackers(ctx context.Context, tx *gorm.DB, projectID, keepID uuid.UUID) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) error
}

type integrationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIntegrationRepo(db *gorm.DB, baseLog *logger.Logger) IntegrationRepo {
	return &integrationRepo{db: db, log: baseLog.With("repo", "IntegrationRepo")}
}

func (r *integrationRepo) Create(ctx context.Context, tx *gorm.DB, in *types.Integration) (*types.Integration, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(in).Error; err != nil {
		return nil, err
	}
	return in, nil
}

func (r *integrationRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) (*types.Integration, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var in types.Integration
	if err := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *integrationRepo) ListByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Integration, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Integration
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("type ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *integrationRepo) GetActiveByProjectAndType(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, integrationType string) (*types.Integration, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var in types.Integration
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND type = ? AND is_active = ?", projectID, integrationType, true).
		First(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *integrationRepo) UpdateFields(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Integration{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeactivateOtherTrackers flips is_active off for every tracker-kind
// integration of the project except keepID. Run immediately after an
// activation write so at most one tracker stays active.
func (r *integrationRepo) DeactivateOtherTrackers(ctx context.Context, tx *gorm.DB, projectID, keepID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Integration{}).
		Where("project_id = ? AND id <> ? AND is_active = ? AND type IN ?",
			projectID, keepID, true,
			[]string{types.IntegrationTypeJira, types.IntegrationTypeAzureDevOps}).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *integrationRepo) Delete(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		Delete(&types.Integration{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
