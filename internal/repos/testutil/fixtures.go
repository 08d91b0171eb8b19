package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/types"
)

func SeedWorkspace(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.Workspace {
	tb.Helper()
	ws := &types.Workspace{
		ID:          uuid.New(),
		Name:        "Acme",
		OwnerUserID: uuid.New(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := tx.WithContext(ctx).Create(ws).Error; err != nil {
		tb.Fatalf("seed workspace: %v", err)
	}
	return ws
}

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) *types.Project {
	tb.Helper()
	p := &types.Project{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        "Checkout",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedIntegration(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, integrationType string, active bool) *types.Integration {
	tb.Helper()
	in := &types.Integration{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      integrationType,
		Metadata:  datatypes.JSONMap{},
		IsActive:  active,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := tx.WithContext(ctx).Create(in).Error; err != nil {
		tb.Fatalf("seed integration: %v", err)
	}
	return in
}

func SeedContextFile(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string, fileID *string) *types.ContextFile {
	tb.Helper()
	cf := &types.ContextFile{
		ID:           uuid.New(),
		ProjectID:    projectID,
		SourceType:   "upload",
		FileName:     "notes.pdf",
		Provider:     "openai",
		OpenAIFileID: fileID,
		Status:       status,
		CreatedAt:    time.Now(),
	}
	if err := tx.WithContext(ctx).Create(cf).Error; err != nil {
		tb.Fatalf("seed context file: %v", err)
	}
	return cf
}
