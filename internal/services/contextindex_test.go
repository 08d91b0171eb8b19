package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/openaivs"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/repos/testutil"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

// fakeVSClient is an in-memory stand-in for the indexing provider. Each
// hook can be overridden per test; unset hooks succeed with generated ids.
// The mutex keeps counters safe under the reconcile fan-out.
type fakeVSClient struct {
	mu           sync.Mutex
	uploadErr    error
	createErr    error
	attachErr    error
	statusFn     func(vsID, fileID string) (*openaivs.FileStatus, error)
	detachErr    error
	deleteErr    error
	uploadCalls  int
	createCalls  int
	attachCalls  int
	statusCalls  int
	detachCalls  int
	deleteCalls  int
	lastVSID     string
	lastFileID   string
	deletedFiles []string
}

func (f *fakeVSClient) UploadFile(ctx context.Context, fileName string, content io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	io.Copy(io.Discard, content)
	return fmt.Sprintf("file-%d", f.uploadCalls), nil
}

func (f *fakeVSClient) CreateVectorStore(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return fmt.Sprintf("vs_%d", f.createCalls), nil
}

func (f *fakeVSClient) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachCalls++
	f.lastVSID, f.lastFileID = vectorStoreID, fileID
	return f.attachErr
}

func (f *fakeVSClient) GetFileStatus(ctx context.Context, vectorStoreID, fileID string) (*openaivs.FileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	f.lastVSID, f.lastFileID = vectorStoreID, fileID
	if f.statusFn != nil {
		return f.statusFn(vectorStoreID, fileID)
	}
	return &openaivs.FileStatus{Status: "in_progress"}, nil
}

func (f *fakeVSClient) DetachFile(ctx context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachCalls++
	return f.detachErr
}

func (f *fakeVSClient) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	f.deletedFiles = append(f.deletedFiles, fileID)
	return f.deleteErr
}

func newContextService(t *testing.T, fake *fakeVSClient) (ContextService, *gorm.DB, uuid.UUID) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	ws := testutil.SeedWorkspace(t, ctx, db)
	project := testutil.SeedProject(t, ctx, db, ws.ID)
	svc := NewContextService(db, log, repos.NewProjectRepo(db, log), repos.NewContextFileRepo(db, log), fake)
	return svc, db, project.ID
}

func setVectorStoreID(t *testing.T, db *gorm.DB, projectID uuid.UUID, vsID string) {
	t.Helper()
	if err := db.Model(&types.Project{}).Where("id = ?", projectID).
		Update("openai_vector_store_id", vsID).Error; err != nil {
		t.Fatalf("set vector store id: %v", err)
	}
}

func TestEnsureVectorStoreIdempotent(t *testing.T) {
	fake := &fakeVSClient{}
	svc, _, projectID := newContextService(t, fake)
	ctx := context.Background()

	first, err := svc.EnsureVectorStore(ctx, projectID)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := svc.EnsureVectorStore(ctx, projectID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first != second {
		t.Fatalf("ensure must reuse the stored id: %q vs %q", first, second)
	}
	if fake.createCalls != 1 {
		t.Fatalf("want 1 create call, got %d", fake.createCalls)
	}
}

func TestUploadHappyPath(t *testing.T) {
	fake := &fakeVSClient{}
	svc, _, projectID := newContextService(t, fake)
	ctx := context.Background()

	row, err := svc.Upload(ctx, projectID, UploadContextInput{
		FileName: "notes.md",
		MimeType: "text/markdown",
		FileSize: 42,
		Content:  strings.NewReader("# backlog notes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if row.Status != types.ContextStatusIndexing {
		t.Fatalf("want indexing after attach, got %q", row.Status)
	}
	if row.OpenAIFileID == nil || !openaivs.IsFileID(*row.OpenAIFileID) {
		t.Fatalf("file id not recorded: %v", row.OpenAIFileID)
	}
	if fake.lastVSID != "vs_1" || fake.lastFileID != "file-1" {
		t.Fatalf("attach used wrong ids: %q %q", fake.lastVSID, fake.lastFileID)
	}
}

func TestUploadFailureNeverLeavesUploading(t *testing.T) {
	cases := []struct {
		name string
		fake *fakeVSClient
	}{
		{"vector store create fails", &fakeVSClient{createErr: apierr.Provider(500, "boom", "create vector store")}},
		{"file upload fails", &fakeVSClient{uploadErr: apierr.Transport(errors.New("dial tcp: timeout"), "upload file")}},
		{"attach fails", &fakeVSClient{attachErr: apierr.Provider(400, "invalid file", "attach file")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, db, projectID := newContextService(t, tc.fake)
			ctx := context.Background()

			row, err := svc.Upload(ctx, projectID, UploadContextInput{
				FileName: "notes.md",
				Content:  strings.NewReader("x"),
			})
			if err == nil {
				t.Fatal("want upload error")
			}
			if row == nil || row.Status != types.ContextStatusFailed {
				t.Fatalf("row must be failed, got %+v", row)
			}
			if row.LastError == nil || *row.LastError == "" {
				t.Fatal("failure cause must be recorded on the row")
			}

			var persisted types.ContextFile
			if err := db.Where("id = ?", row.ID).First(&persisted).Error; err != nil {
				t.Fatalf("load row: %v", err)
			}
			if persisted.Status == types.ContextStatusUploading {
				t.Fatal("row left stuck in uploading")
			}
			if persisted.Status != types.ContextStatusFailed {
				t.Fatalf("persisted status = %q, want failed", persisted.Status)
			}
		})
	}
}

func TestReconcileStatusMapping(t *testing.T) {
	chunks := 7
	cases := []struct {
		external   string
		want       string
		chunkCount *int
	}{
		{"completed", types.ContextStatusReady, &chunks},
		{"in_progress", types.ContextStatusIndexing, nil},
		{"failed", types.ContextStatusFailed, nil},
		{"cancelled", types.ContextStatusFailed, nil},
		{"expired", types.ContextStatusFailed, nil},
		{"some_future_state", types.ContextStatusIndexing, nil},
	}
	for _, tc := range cases {
		t.Run(tc.external, func(t *testing.T) {
			fake := &fakeVSClient{statusFn: func(vsID, fileID string) (*openaivs.FileStatus, error) {
				return &openaivs.FileStatus{Status: tc.external, ChunkCount: tc.chunkCount}, nil
			}}
			svc, db, projectID := newContextService(t, fake)
			ctx := context.Background()
			setVectorStoreID(t, db, projectID, "vs_store")
			fileID := "file-abc"
			row := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusIndexing, &fileID)

			status, err := svc.ReconcileStatus(ctx, projectID, row.ID)
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if status.Status != tc.want {
				t.Fatalf("status = %q, want %q", status.Status, tc.want)
			}
			var persisted types.ContextFile
			if err := db.Where("id = ?", row.ID).First(&persisted).Error; err != nil {
				t.Fatalf("load row: %v", err)
			}
			if persisted.Status != tc.want {
				t.Fatalf("persisted status = %q, want %q", persisted.Status, tc.want)
			}
			if tc.chunkCount != nil && (persisted.ChunkCount == nil || *persisted.ChunkCount != *tc.chunkCount) {
				t.Fatalf("chunk count not persisted: %v", persisted.ChunkCount)
			}
		})
	}
}

func TestReconcileStatusProviderErrorPersistedNotPropagated(t *testing.T) {
	fake := &fakeVSClient{statusFn: func(vsID, fileID string) (*openaivs.FileStatus, error) {
		return nil, apierr.Provider(404, `{"error":"no such vector store file"}`, "get file status")
	}}
	svc, db, projectID := newContextService(t, fake)
	ctx := context.Background()
	setVectorStoreID(t, db, projectID, "vs_store")
	fileID := "file-abc"
	row := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusIndexing, &fileID)

	status, err := svc.ReconcileStatus(ctx, projectID, row.ID)
	if err != nil {
		t.Fatalf("reconcile must absorb provider errors, got %v", err)
	}
	if status.Status != types.ContextStatusFailed {
		t.Fatalf("status = %q, want failed", status.Status)
	}
	if status.LastError == nil || !strings.Contains(*status.LastError, "404") {
		t.Fatalf("provider failure detail missing: %v", status.LastError)
	}
	var persisted types.ContextFile
	if err := db.Where("id = ?", row.ID).First(&persisted).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if persisted.Status != types.ContextStatusFailed || persisted.LastError == nil {
		t.Fatalf("failure not persisted: %+v", persisted)
	}
}

func TestReconcileStatusRepairsSwappedIdentifiers(t *testing.T) {
	fake := &fakeVSClient{statusFn: func(vsID, fileID string) (*openaivs.FileStatus, error) {
		return &openaivs.FileStatus{Status: "in_progress"}, nil
	}}
	svc, db, projectID := newContextService(t, fake)
	ctx := context.Background()

	// The corruption: file id stored on the project, store id on the row.
	setVectorStoreID(t, db, projectID, "file-swapped")
	vsInFileColumn := "vs_swapped"
	row := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusIndexing, &vsInFileColumn)

	if _, err := svc.ReconcileStatus(ctx, projectID, row.ID); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if fake.lastVSID != "vs_swapped" || fake.lastFileID != "file-swapped" {
		t.Fatalf("provider called with uncorrected ids: %q %q", fake.lastVSID, fake.lastFileID)
	}

	var project types.Project
	if err := db.Where("id = ?", projectID).First(&project).Error; err != nil {
		t.Fatalf("load project: %v", err)
	}
	if project.OpenAIVectorStoreID == nil || *project.OpenAIVectorStoreID != "vs_swapped" {
		t.Fatalf("project id not repaired: %v", project.OpenAIVectorStoreID)
	}
	var persisted types.ContextFile
	if err := db.Where("id = ?", row.ID).First(&persisted).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if persisted.OpenAIFileID == nil || *persisted.OpenAIFileID != "file-swapped" {
		t.Fatalf("row file id not repaired: %v", persisted.OpenAIFileID)
	}

	// Second call sees the corrected columns; nothing left to repair.
	if _, err := svc.ReconcileStatus(ctx, projectID, row.ID); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if fake.statusCalls != 2 {
		t.Fatalf("want 2 status calls, got %d", fake.statusCalls)
	}
}

func TestReconcileStatusSkipsCallForMalformedIDs(t *testing.T) {
	fake := &fakeVSClient{}
	svc, db, projectID := newContextService(t, fake)
	ctx := context.Background()

	setVectorStoreID(t, db, projectID, "not-a-store-id")
	fileID := "also-not-a-file-id"
	row := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusIndexing, &fileID)

	status, err := svc.ReconcileStatus(ctx, projectID, row.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if fake.statusCalls != 0 {
		t.Fatal("provider must not be called with malformed ids")
	}
	if status.Status != types.ContextStatusIndexing {
		t.Fatalf("want last-known status back, got %q", status.Status)
	}
}

func TestReconcileStatusDeletedIsTerminal(t *testing.T) {
	fake := &fakeVSClient{}
	svc, db, projectID := newContextService(t, fake)
	ctx := context.Background()
	setVectorStoreID(t, db, projectID, "vs_store")
	fileID := "file-abc"
	row := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusDeleted, &fileID)

	status, err := svc.ReconcileStatus(ctx, projectID, row.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if status.Status != types.ContextStatusDeleted {
		t.Fatalf("deleted must stay deleted, got %q", status.Status)
	}
	if fake.statusCalls != 0 {
		t.Fatal("deleted rows must not hit the provider")
	}
}

func TestDeleteBestEffortCleanup(t *testing.T) {
	t.Run("remote cleanup failure does not block delete", func(t *testing.T) {
		fake := &fakeVSClient{
			detachErr: apierr.Provider(500, "boom", "detach file"),
			deleteErr: apierr.Transport(errors.New("connection reset"), "delete file"),
		}
		svc, db, projectID := newContextService(t, fake)
		ctx := context.Background()
		setVectorStoreID(t, db, projectID, "vs_store")
		fileID := "file-abc"
		row := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusReady, &fileID)

		if err := svc.Delete(ctx, projectID, row.ID); err != nil {
			t.Fatalf("delete must succeed despite remote failures, got %v", err)
		}
		var persisted types.ContextFile
		if err := db.Where("id = ?", row.ID).First(&persisted).Error; err != nil {
			t.Fatalf("load row: %v", err)
		}
		if persisted.Status != types.ContextStatusDeleted {
			t.Fatalf("status = %q, want deleted", persisted.Status)
		}
	})

	t.Run("deletes remote file when ids are valid", func(t *testing.T) {
		fake := &fakeVSClient{}
		svc, _, projectID := newContextService(t, fake)
		ctx := context.Background()

		row, err := svc.Upload(ctx, projectID, UploadContextInput{
			FileName: "notes.md",
			Content:  strings.NewReader("x"),
		})
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if err := svc.Delete(ctx, projectID, row.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if fake.detachCalls != 1 || fake.deleteCalls != 1 {
			t.Fatalf("want detach+delete, got %d/%d", fake.detachCalls, fake.deleteCalls)
		}
		if len(fake.deletedFiles) != 1 || fake.deletedFiles[0] != *row.OpenAIFileID {
			t.Fatalf("deleted wrong file: %v", fake.deletedFiles)
		}
		// Already-deleted rows are a no-op, no second remote round trip.
		if err := svc.Delete(ctx, projectID, row.ID); err != nil {
			t.Fatalf("repeat delete: %v", err)
		}
		if fake.deleteCalls != 1 {
			t.Fatalf("repeat delete must not call the provider again, got %d", fake.deleteCalls)
		}
	})

	t.Run("deleted rows excluded from listing", func(t *testing.T) {
		fake := &fakeVSClient{}
		svc, db, projectID := newContextService(t, fake)
		ctx := context.Background()
		fileID := "file-abc"
		keep := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusReady, &fileID)
		gone := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusDeleted, nil)

		rows, err := svc.List(ctx, projectID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(rows) != 1 || rows[0].ID != keep.ID {
			t.Fatalf("listing must exclude deleted row %s, got %d rows", gone.ID, len(rows))
		}
	})
}

func TestReconcileProjectRefreshesPendingRows(t *testing.T) {
	fake := &fakeVSClient{statusFn: func(vsID, fileID string) (*openaivs.FileStatus, error) {
		n := 3
		return &openaivs.FileStatus{Status: "completed", ChunkCount: &n}, nil
	}}
	svc, db, projectID := newContextService(t, fake)
	ctx := context.Background()
	setVectorStoreID(t, db, projectID, "vs_store")

	aID, bID := "file-a", "file-b"
	a := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusIndexing, &aID)
	b := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusUploading, &bID)
	readyID := "file-c"
	ready := testutil.SeedContextFile(t, ctx, db, projectID, types.ContextStatusReady, &readyID)

	if err := svc.ReconcileProject(ctx, projectID); err != nil {
		t.Fatalf("reconcile project: %v", err)
	}
	if fake.statusCalls != 2 {
		t.Fatalf("only pending rows should be polled, got %d calls", fake.statusCalls)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		var persisted types.ContextFile
		if err := db.Where("id = ?", id).First(&persisted).Error; err != nil {
			t.Fatalf("load row: %v", err)
		}
		if persisted.Status != types.ContextStatusReady {
			t.Fatalf("row %s status = %q, want ready", id, persisted.Status)
		}
	}
	var persisted types.ContextFile
	if err := db.Where("id = ?", ready.ID).First(&persisted).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if persisted.Status != types.ContextStatusReady {
		t.Fatalf("terminal row must be untouched, got %q", persisted.Status)
	}
}
