package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

type ContextFileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, cf *types.ContextFile) (*types.ContextFile, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) (*types.ContextFile, error)
	ListByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ContextFile, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type contextFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContextFileRepo(db *gorm.DB, baseLog *logger.Logger) ContextFileRepo {
	return &contextFileRepo{db: db, log: baseLog.With("repo", "ContextFileRepo")}
}

func (r *contextFileRepo) Create(ctx context.Context, tx *gorm.DB, cf *types.ContextFile) (*types.ContextFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(cf).Error; err != nil {
		return nil, err
	}
	return cf, nil
}

func (r *contextFileRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) (*types.ContextFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var cf types.ContextFile
	if err := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&cf).Error; err != nil {
		return nil, err
	}
	return &cf, nil
}

func (r *contextFileRepo) ListByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ContextFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ContextFile
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND status <> ?", projectID, types.ContextStatusDeleted).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *contextFileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ContextFile{}).
		Where("id = ?", id).
		Updates(fields).Error
}
