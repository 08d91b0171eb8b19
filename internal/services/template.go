package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

// TemplateService stores versioned prompt templates. Editing the body bumps
// the version; rendering happens elsewhere.
type TemplateService interface {
	Create(ctx context.Context, projectID uuid.UUID, name, body string) (*types.PromptTemplate, error)
	Get(ctx context.Context, projectID, id uuid.UUID) (*types.PromptTemplate, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*types.PromptTemplate, error)
	UpdateBody(ctx context.Context, projectID, id uuid.UUID, body string) (*types.PromptTemplate, error)
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

type templateService struct {
	db           *gorm.DB
	log          *logger.Logger
	templateRepo repos.PromptTemplateRepo
}

func NewTemplateService(db *gorm.DB, baseLog *logger.Logger, templateRepo repos.PromptTemplateRepo) TemplateService {
	return &templateService{db: db, log: baseLog.With("service", "TemplateService"), templateRepo: templateRepo}
}

func (s *templateService) Create(ctx context.Context, projectID uuid.UUID, name, body string) (*types.PromptTemplate, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apierr.Configuration("template name is required")
	}
	now := time.Now()
	pt := &types.PromptTemplate{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		Version:   1,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.templateRepo.Create(ctx, nil, pt)
}

func (s *templateService) Get(ctx context.Context, projectID, id uuid.UUID) (*types.PromptTemplate, error) {
	pt, err := s.templateRepo.GetByID(ctx, nil, projectID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("template %s not found", id)
		}
		return nil, err
	}
	return pt, nil
}

func (s *templateService) List(ctx context.Context, projectID uuid.UUID) ([]*types.PromptTemplate, error) {
	return s.templateRepo.ListByProjectID(ctx, nil, projectID)
}

func (s *templateService) UpdateBody(ctx context.Context, projectID, id uuid.UUID, body string) (*types.PromptTemplate, error) {
	current, err := s.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if err := s.templateRepo.UpdateFields(ctx, nil, projectID, id, map[string]interface{}{
		"body":       body,
		"version":    current.Version + 1,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, projectID, id)
}

func (s *templateService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	if err := s.templateRepo.Delete(ctx, nil, projectID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("template %s not found", id)
		}
		return err
	}
	return nil
}
