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

// WorkItemService resolves a project's active tracker integration plus its
// credentials and fetches one normalized work item. A missing integration
// and a missing secret are reported as the same condition: a half-configured
// integration is operationally equivalent to a missing one.
type WorkItemService interface {
	Fetch(ctx context.Context, projectID uuid.UUID, source, externalID string) (*trackers.NormalizedWorkItem, error)
}

type workItemService struct {
	log             *logger.Logger
	integrationRepo repos.IntegrationRepo
	secretService   SecretService
	registry        *trackers.Registry
}

func NewWorkItemService(
	baseLog *logger.Logger,
	integrationRepo repos.IntegrationRepo,
	secretService SecretService,
	registry *trackers.Registry,
) WorkItemService {
	return &workItemService{
		log:             baseLog.With("service", "WorkItemService"),
		integrationRepo: integrationRepo,
		secretService:   secretService,
		registry:        registry,
	}
}

func (s *workItemService) Fetch(ctx context.Context, projectID uuid.UUID, source, externalID string) (*trackers.NormalizedWorkItem, error) {
	adapter, integrationType, err := s.registry.ForSource(source)
	if err != nil {
		return nil, err
	}
	integration, err := s.integrationRepo.GetActiveByProjectAndType(ctx, nil, projectID, integrationType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.Configuration("no active %s integration or credentials configured for this project", integrationType)
		}
		return nil, err
	}
	credentials, err := s.secretService.GetDecrypted(ctx, projectID, integrationType)
	if err != nil {
		if apierr.Is(err, apierr.CodeNotFound) {
			return nil, apierr.Configuration("no active %s integration or credentials configured for this project", integrationType)
		}
		return nil, err
	}
	item, err := adapter.FetchWorkItem(ctx, credentials, integration.Metadata, externalID)
	if err != nil {
		s.log.Warn("Work item fetch failed", "project_id", projectID, "source", source, "external_id", externalID, "error", err)
		return nil, err
	}
	return item, nil
}
