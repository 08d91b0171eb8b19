package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ContextStatusUploading = "uploading"
	ContextStatusIndexing  = "indexing"
	ContextStatusReady     = "ready"
	ContextStatusFailed    = "failed"
	ContextStatusDeleted   = "deleted"
)

// ContextFile is one uploaded document attached to a project for AI
// grounding. Indexing happens in an external vector store; status is pulled
// from there, never pushed. "deleted" is terminal: removal soft-deletes the
// row after a best-effort remote cleanup.
type ContextFile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project    *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	SourceType string    `gorm:"column:source_type;not null;default:'upload'" json:"source_type"`
	FileName   string    `gorm:"column:file_name;not null" json:"file_name"`
	FileSize   int64     `gorm:"column:file_size" json:"file_size"`
	MimeType   string    `gorm:"column:mime_type" json:"mime_type"`
	Provider   string    `gorm:"column:provider;not null;default:'openai'" json:"provider"`

	// External file identifier, nil until the upload reaches the provider.
	OpenAIFileID *string `gorm:"column:openai_file_id" json:"openai_file_id,omitempty"`

	Status     string            `gorm:"column:status;not null;default:'uploading';index" json:"status"`
	ChunkCount *int              `gorm:"column:chunk_count" json:"chunk_count,omitempty"`
	LastError  *string           `gorm:"column:last_error" json:"last_error,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ContextFile) TableName() string { return "context_file" }
