package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/trackers"
)

// ConnectionService runs a live round trip against a tracker with the
// project's stored credentials. Verification and activation are separate
// operations: TestConnection never mutates state, TestAndActivate composes
// the two. A failed test never deactivates anything — absence of success is
// not evidence that the existing state is wrong.
type ConnectionService interface {
	TestConnection(ctx context.Context, projectID, integrationID uuid.UUID) (*trackers.TestResult, error)
	TestAndActivate(ctx context.Context, projectID, integrationID uuid.UUID) (*trackers.TestResult, error)
}

type connectionService struct {
	log             *logger.Logger
	integrationRepo repos.IntegrationRepo
	secretService   SecretService
	integrationSvc  IntegrationService
	registry        *trackers.Registry
}

func NewConnectionService(
	baseLog *logger.Logger,
	integrationRepo repos.IntegrationRepo,
	secretService SecretService,
	integrationSvc IntegrationService,
	registry *trackers.Registry,
) ConnectionService {
	return &connectionService{
		log:             baseLog.With("service", "ConnectionService"),
		integrationRepo: integrationRepo,
		secretService:   secretService,
		integrationSvc:  integrationSvc,
		registry:        registry,
	}
}

func (s *connectionService) TestConnection(ctx context.Context, projectID, integrationID uuid.UUID) (*trackers.TestResult, error) {
	integration, err := s.integrationRepo.GetByID(ctx, nil, projectID, integrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("integration %s not found", integrationID)
		}
		return nil, err
	}
	adapter, err := s.registry.ForIntegrationType(integration.Type)
	if err != nil {
		return nil, err
	}
	credentials, err := s.secretService.GetDecrypted(ctx, projectID, integration.Type)
	if err != nil {
		// Missing credentials are a distinct condition, not a failed
		// live check.
		if apierr.Is(err, apierr.CodeNotFound) {
			return nil, apierr.Configuration("no credentials stored for provider %s", integration.Type)
		}
		return nil, err
	}
	result, err := adapter.TestConnection(ctx, credentials, integration.Metadata)
	if err != nil {
		return nil, err
	}
	s.log.Info("Connection test completed", "project_id", projectID, "integration_id", integrationID, "success", result.Success)
	return result, nil
}

func (s *connectionService) TestAndActivate(ctx context.Context, projectID, integrationID uuid.UUID) (*trackers.TestResult, error) {
	result, err := s.TestConnection(ctx, projectID, integrationID)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, nil
	}
	if _, err := s.integrationSvc.Activate(ctx, projectID, integrationID); err != nil {
		// The live check passed; surface the activation failure rather
		// than pretending the integration is active.
		return nil, err
	}
	return result, nil
}
