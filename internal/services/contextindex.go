package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/openaivs"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

// ContextService manages uploaded context documents and their asynchronous
// indexing lifecycle against the external vector store. Status is pull-based:
// every poll re-derives the row's status from the provider, so repeated or
// concurrent polls are safe.
type ContextService interface {
	Upload(ctx context.Context, projectID uuid.UUID, input UploadContextInput) (*types.ContextFile, error)
	EnsureVectorStore(ctx context.Context, projectID uuid.UUID) (string, error)
	ReconcileStatus(ctx context.Context, projectID, contextID uuid.UUID) (*ContextStatus, error)
	ReconcileProject(ctx context.Context, projectID uuid.UUID) error
	List(ctx context.Context, projectID uuid.UUID) ([]*types.ContextFile, error)
	Delete(ctx context.Context, projectID, contextID uuid.UUID) error
}

type UploadContextInput struct {
	FileName   string
	MimeType   string
	FileSize   int64
	SourceType string
	Content    io.Reader
}

type ContextStatus struct {
	Status     string  `json:"status"`
	ChunkCount *int    `json:"chunkCount"`
	LastError  *string `json:"lastError"`
}

const reconcileConcurrency = 4

type contextService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	contextRepo repos.ContextFileRepo
	vsClient    openaivs.Client
}

func NewContextService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	contextRepo repos.ContextFileRepo,
	vsClient openaivs.Client,
) ContextService {
	return &contextService{
		db:          db,
		log:         baseLog.With("service", "ContextService"),
		projectRepo: projectRepo,
		contextRepo: contextRepo,
		vsClient:    vsClient,
	}
}

// EnsureVectorStore returns the project's vector store id, creating one
// externally on first use. Idempotence comes from the stored-id check, not
// from any provider-side dedup.
func (s *contextService) EnsureVectorStore(ctx context.Context, projectID uuid.UUID) (string, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apierr.NotFound("project %s not found", projectID)
		}
		return "", err
	}
	if project.OpenAIVectorStoreID != nil && openaivs.IsVectorStoreID(*project.OpenAIVectorStoreID) {
		return *project.OpenAIVectorStoreID, nil
	}
	vsID, err := s.vsClient.CreateVectorStore(ctx, fmt.Sprintf("project-%s-context", projectID))
	if err != nil {
		return "", err
	}
	if err := s.projectRepo.SetVectorStoreID(ctx, nil, projectID, &vsID); err != nil {
		return "", err
	}
	s.log.Info("Created vector store for project", "project_id", projectID, "vector_store_id", vsID)
	return vsID, nil
}

// Upload creates the Context row, pushes the file to the indexing provider
// and attaches it to the project's store. On any failure the row is marked
// failed with the error message; it is never left in uploading.
func (s *contextService) Upload(ctx context.Context, projectID uuid.UUID, input UploadContextInput) (*types.ContextFile, error) {
	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = "upload"
	}
	row := &types.ContextFile{
		ID:         uuid.New(),
		ProjectID:  projectID,
		SourceType: sourceType,
		FileName:   input.FileName,
		FileSize:   input.FileSize,
		MimeType:   input.MimeType,
		Provider:   "openai",
		Status:     types.ContextStatusUploading,
		CreatedAt:  time.Now(),
	}
	if _, err := s.contextRepo.Create(ctx, nil, row); err != nil {
		return nil, err
	}

	vsID, err := s.EnsureVectorStore(ctx, projectID)
	if err != nil {
		return s.markFailed(ctx, row, err)
	}
	fileID, err := s.vsClient.UploadFile(ctx, input.FileName, input.Content)
	if err != nil {
		return s.markFailed(ctx, row, err)
	}
	row.OpenAIFileID = &fileID
	if err := s.vsClient.AttachFile(ctx, vsID, fileID); err != nil {
		return s.markFailed(ctx, row, err)
	}

	row.Status = types.ContextStatusIndexing
	if err := s.contextRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
		"openai_file_id": fileID,
		"status":         types.ContextStatusIndexing,
		"last_error":     nil,
	}); err != nil {
		return nil, err
	}
	s.log.Info("Context file attached for indexing", "project_id", projectID, "context_id", row.ID, "file_id", fileID)
	return row, nil
}

func (s *contextService) markFailed(ctx context.Context, row *types.ContextFile, cause error) (*types.ContextFile, error) {
	msg := apierr.Truncate(cause.Error(), 1000)
	fields := map[string]interface{}{
		"status":     types.ContextStatusFailed,
		"last_error": msg,
	}
	if row.OpenAIFileID != nil {
		fields["openai_file_id"] = *row.OpenAIFileID
	}
	if err := s.contextRepo.UpdateFields(ctx, nil, row.ID, fields); err != nil {
		s.log.Error("Could not mark context file failed", "context_id", row.ID, "error", err)
	}
	row.Status = types.ContextStatusFailed
	row.LastError = &msg
	return row, cause
}

// ReconcileStatus pulls the external indexing status, maps it into the
// internal vocabulary and persists the result onto the row. Before calling
// out it validates the stored identifiers against the provider's id shapes,
// repairing a swapped pair once; if either id still fails validation the
// external call is skipped and the last-known status is returned.
func (s *contextService) ReconcileStatus(ctx context.Context, projectID, contextID uuid.UUID) (*ContextStatus, error) {
	row, err := s.contextRepo.GetByID(ctx, nil, projectID, contextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("context %s not found", contextID)
		}
		return nil, err
	}
	if row.Status == types.ContextStatusDeleted {
		return statusOf(row), nil
	}
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("project %s not found", projectID)
		}
		return nil, err
	}

	vsID := deref(project.OpenAIVectorStoreID)
	fileID := deref(row.OpenAIFileID)

	// Self-healing for a known corruption mode: the two ids written to
	// each other's columns. Shapes are distinguishable (vs_ vs file-),
	// so a clean swap is detectable and safe to repair in place.
	if openaivs.IsFileID(vsID) && openaivs.IsVectorStoreID(fileID) {
		vsID, fileID = fileID, vsID
		if err := s.projectRepo.SetVectorStoreID(ctx, nil, projectID, &vsID); err != nil {
			return nil, err
		}
		if err := s.contextRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{"openai_file_id": fileID}); err != nil {
			return nil, err
		}
		s.log.Warn("Corrected swapped vector store and file identifiers",
			"project_id", projectID, "context_id", contextID,
			"vector_store_id", vsID, "file_id", fileID)
	}

	if !openaivs.IsVectorStoreID(vsID) || !openaivs.IsFileID(fileID) {
		// Still malformed after the swap check. Calling the provider is
		// guaranteed to fail, so degrade to the last persisted status.
		s.log.Warn("Skipping status check, stored identifiers fail shape validation",
			"project_id", projectID, "context_id", contextID)
		return statusOf(row), nil
	}

	external, err := s.vsClient.GetFileStatus(ctx, vsID, fileID)
	if err != nil {
		msg := apierr.Truncate(err.Error(), 1000)
		if uerr := s.contextRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
			"status":     types.ContextStatusFailed,
			"last_error": msg,
		}); uerr != nil {
			s.log.Error("Could not persist reconcile failure", "context_id", contextID, "error", uerr)
		}
		return &ContextStatus{Status: types.ContextStatusFailed, LastError: &msg}, nil
	}

	mapped := mapExternalStatus(external.Status)
	fields := map[string]interface{}{"status": mapped}
	var lastError *string
	if external.LastError != "" {
		msg := apierr.Truncate(external.LastError, 1000)
		lastError = &msg
		fields["last_error"] = msg
	} else {
		fields["last_error"] = nil
	}
	if external.ChunkCount != nil {
		fields["chunk_count"] = *external.ChunkCount
	}
	if err := s.contextRepo.UpdateFields(ctx, nil, row.ID, fields); err != nil {
		return nil, err
	}
	return &ContextStatus{Status: mapped, ChunkCount: external.ChunkCount, LastError: lastError}, nil
}

// mapExternalStatus folds the provider's status vocabulary into the internal
// three states. Unknown values count as still indexing rather than failed.
func mapExternalStatus(external string) string {
	switch external {
	case "completed":
		return types.ContextStatusReady
	case "failed", "cancelled", "expired":
		return types.ContextStatusFailed
	default:
		return types.ContextStatusIndexing
	}
}

// ReconcileProject refreshes every non-terminal context row of a project,
// a few at a time. Per-row failures are already persisted by
// ReconcileStatus, so the fan-out only reports infrastructure errors.
func (s *contextService) ReconcileProject(ctx context.Context, projectID uuid.UUID) error {
	rows, err := s.contextRepo.ListByProjectID(ctx, nil, projectID)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, row := range rows {
		if row.Status != types.ContextStatusIndexing && row.Status != types.ContextStatusUploading {
			continue
		}
		id := row.ID
		g.Go(func() error {
			_, err := s.ReconcileStatus(gctx, projectID, id)
			return err
		})
	}
	return g.Wait()
}

func (s *contextService) List(ctx context.Context, projectID uuid.UUID) ([]*types.ContextFile, error) {
	return s.contextRepo.ListByProjectID(ctx, nil, projectID)
}

// Delete removes the remote file best-effort and soft-deletes the row.
// Remote cleanup failures are logged, never propagated: the provider may
// already have dropped the file, and the row's terminal state must not
// depend on it.
func (s *contextService) Delete(ctx context.Context, projectID, contextID uuid.UUID) error {
	row, err := s.contextRepo.GetByID(ctx, nil, projectID, contextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("context %s not found", contextID)
		}
		return err
	}
	if row.Status == types.ContextStatusDeleted {
		return nil
	}
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err == nil && row.OpenAIFileID != nil && openaivs.IsFileID(*row.OpenAIFileID) {
		fileID := *row.OpenAIFileID
		if vsID := deref(project.OpenAIVectorStoreID); openaivs.IsVectorStoreID(vsID) {
			if derr := s.vsClient.DetachFile(ctx, vsID, fileID); derr != nil {
				s.log.Warn("Best-effort vector store detach failed", "context_id", contextID, "error", derr)
			}
		}
		if derr := s.vsClient.DeleteFile(ctx, fileID); derr != nil {
			s.log.Warn("Best-effort remote file delete failed", "context_id", contextID, "error", derr)
		}
	}
	return s.contextRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
		"status": types.ContextStatusDeleted,
	})
}

func statusOf(row *types.ContextFile) *ContextStatus {
	return &ContextStatus{Status: row.Status, ChunkCount: row.ChunkCount, LastError: row.LastError}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
