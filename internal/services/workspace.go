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

type WorkspaceService interface {
	Create(ctx context.Context, ownerUserID uuid.UUID, name string) (*types.Workspace, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Workspace, error)
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Workspace, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type workspaceService struct {
	db            *gorm.DB
	log           *logger.Logger
	workspaceRepo repos.WorkspaceRepo
}

func NewWorkspaceService(db *gorm.DB, baseLog *logger.Logger, workspaceRepo repos.WorkspaceRepo) WorkspaceService {
	return &workspaceService{db: db, log: baseLog.With("service", "WorkspaceService"), workspaceRepo: workspaceRepo}
}

func (s *workspaceService) Create(ctx context.Context, ownerUserID uuid.UUID, name string) (*types.Workspace, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apierr.Configuration("workspace name is required")
	}
	now := time.Now()
	ws := &types.Workspace{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.workspaceRepo.Create(ctx, nil, ws)
}

func (s *workspaceService) Get(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	ws, err := s.workspaceRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("workspace %s not found", id)
		}
		return nil, err
	}
	return ws, nil
}

func (s *workspaceService) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Workspace, error) {
	return s.workspaceRepo.ListByOwner(ctx, nil, ownerUserID)
}

func (s *workspaceService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.workspaceRepo.Delete(ctx, nil, id)
}
