package types

import (
	"time"

	"github.com/google/uuid"
)

// PromptTemplate is a versioned template driving LLM-proposed work-item
// edits. Rendering is out of this layer; rows are storage only.
type PromptTemplate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Version   int       `gorm:"column:version;not null;default:1" json:"version"`
	Body      string    `gorm:"column:body;not null" json:"body"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PromptTemplate) TableName() string { return "prompt_template" }
