package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

type PromptTemplateRepo interface {
	Create(ctx context.Context, tx *gorm.DB, pt *types.PromptTemplate) (*types.PromptTemplate, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) (*types.PromptTemplate, error)
	ListByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.PromptTemplate, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) error
}

type promptTemplateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptTemplateRepo(db *gorm.DB, baseLog *logger.Logger) PromptTemplateRepo {
	return &promptTemplateRepo{db: db, log: baseLog.With("repo", "PromptTemplateRepo")}
}

func (r *promptTemplateRepo) Create(ctx context.Context, tx *gorm.DB, pt *types.PromptTemplate) (*types.PromptTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(pt).Error; err != nil {
		return nil, err
	}
	return pt, nil
}

func (r *promptTemplateRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) (*types.PromptTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var pt types.PromptTemplate
	if err := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&pt).Error; err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *promptTemplateRepo) ListByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.PromptTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PromptTemplate
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("name ASC, version DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *promptTemplateRepo) UpdateFields(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.PromptTemplate{}).
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

func (r *promptTemplateRepo) Delete(ctx context.Context, tx *gorm.DB, projectID, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		Delete(&types.PromptTemplate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
