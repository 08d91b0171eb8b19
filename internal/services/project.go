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

type ProjectService interface {
	Create(ctx context.Context, workspaceID uuid.UUID, name, description string) (*types.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Project, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*types.Project, error)
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*types.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo) ProjectService {
	return &projectService{db: db, log: baseLog.With("service", "ProjectService"), projectRepo: projectRepo}
}

func (s *projectService) Create(ctx context.Context, workspaceID uuid.UUID, name, description string) (*types.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apierr.Configuration("project name is required")
	}
	now := time.Now()
	p := &types.Project{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        strings.TrimSpace(name),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.projectRepo.Create(ctx, nil, p)
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	p, err := s.projectRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("project %s not found", id)
		}
		return nil, err
	}
	return p, nil
}

func (s *projectService) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*types.Project, error) {
	return s.projectRepo.ListByWorkspaceID(ctx, nil, workspaceID)
}

func (s *projectService) Update(ctx context.Context, id uuid.UUID, name, description *string) (*types.Project, error) {
	fields := map[string]interface{}{"updated_at": time.Now()}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, apierr.Configuration("project name cannot be empty")
		}
		fields["name"] = strings.TrimSpace(*name)
	}
	if description != nil {
		fields["description"] = *description
	}
	if err := s.projectRepo.UpdateFields(ctx, nil, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.projectRepo.Delete(ctx, nil, id)
}
