package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

// IntegrationService manages a project's tracker and document-provider
// connections and enforces the single-active-tracker invariant: at most one
// jira/azure_devops integration may be active per project at a time.
type IntegrationService interface {
	List(ctx context.Context, projectID uuid.UUID) ([]*types.Integration, error)
	Create(ctx context.Context, projectID uuid.UUID, integrationType string, metadata map[string]interface{}) (*types.Integration, error)
	Update(ctx context.Context, projectID, id uuid.UUID, input UpdateIntegrationInput) (*types.Integration, error)
	Activate(ctx context.Context, projectID, id uuid.UUID) (*types.Integration, error)
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

type UpdateIntegrationInput struct {
	IsActive *bool
	Metadata map[string]interface{}
}

type integrationService struct {
	db              *gorm.DB
	log             *logger.Logger
	integrationRepo repos.IntegrationRepo
}

func NewIntegrationService(db *gorm.DB, baseLog *logger.Logger, integrationRepo repos.IntegrationRepo) IntegrationService {
	return &integrationService{
		db:              db,
		log:             baseLog.With("service", "IntegrationService"),
		integrationRepo: integrationRepo,
	}
}

func validIntegrationType(t string) bool {
	switch t {
	case types.IntegrationTypeJira, types.IntegrationTypeAzureDevOps,
		types.IntegrationTypeConfluence, types.IntegrationTypeSharePoint:
		return true
	default:
		return false
	}
}

func (s *integrationService) List(ctx context.Context, projectID uuid.UUID) ([]*types.Integration, error) {
	return s.integrationRepo.ListByProjectID(ctx, nil, projectID)
}

func (s *integrationService) Create(ctx context.Context, projectID uuid.UUID, integrationType string, metadata map[string]interface{}) (*types.Integration, error) {
	if !validIntegrationType(integrationType) {
		return nil, apierr.Configuration("unknown integration type %q", integrationType)
	}
	now := time.Now()
	in := &types.Integration{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      integrationType,
		Metadata:  datatypes.JSONMap(metadata),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.integrationRepo.Create(ctx, nil, in); err != nil {
		s.log.Error("Create integration failed", "project_id", projectID, "type", integrationType, "error", err)
		return nil, err
	}
	if types.IsTrackerType(in.Type) {
		s.sweepOtherTrackers(ctx, projectID, in.ID)
	}
	return in, nil
}

func (s *integrationService) Update(ctx context.Context, projectID, id uuid.UUID, input UpdateIntegrationInput) (*types.Integration, error) {
	fields := map[string]interface{}{"updated_at": time.Now()}
	if input.Metadata != nil {
		fields["metadata"] = datatypes.JSONMap(input.Metadata)
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}
	if err := s.integrationRepo.UpdateFields(ctx, nil, projectID, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("integration %s not found", id)
		}
		return nil, err
	}
	in, err := s.integrationRepo.GetByID(ctx, nil, projectID, id)
	if err != nil {
		return nil, err
	}
	if input.IsActive != nil && *input.IsActive && types.IsTrackerType(in.Type) {
		s.sweepOtherTrackers(ctx, projectID, id)
	}
	return in, nil
}

// Activate marks the integration active then deactivates every other
// tracker-kind integration of the project. The sweep runs after the
// activation write commits, so concurrent activations converge on whichever
// sweep lands last, never on two active trackers.
func (s *integrationService) Activate(ctx context.Context, projectID, id uuid.UUID) (*types.Integration, error) {
	active := true
	return s.Update(ctx, projectID, id, UpdateIntegrationInput{IsActive: &active})
}

// sweepOtherTrackers is non-fatal: the primary activation already committed,
// so a failed sweep is logged and the next activation repairs it.
func (s *integrationService) sweepOtherTrackers(ctx context.Context, projectID, keepID uuid.UUID) {
	n, err := s.integrationRepo.DeactivateOtherTrackers(ctx, nil, projectID, keepID)
	if err != nil {
		s.log.Warn("Tracker deactivation sweep failed", "project_id", projectID, "keep_id", keepID, "error", err)
		return
	}
	if n > 0 {
		s.log.Info("Deactivated other tracker integrations", "project_id", projectID, "keep_id", keepID, "count", n)
	}
}

// Delete removes the integration row. The matching secret row survives on
// purpose: credentials are reusable across reconfiguration.
func (s *integrationService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	if err := s.integrationRepo.Delete(ctx, nil, projectID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("integration %s not found", id)
		}
		return err
	}
	return nil
}
