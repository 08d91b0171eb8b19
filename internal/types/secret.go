package types

import (
	"time"

	"github.com/google/uuid"
)

// Secret holds one encrypted credential payload per (project, provider).
// The value is a vault token (or plaintext JSON in the no-key degraded
// mode); it is decrypted transiently per outbound call and never cached.
type Secret struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_secret_project_provider" json:"project_id"`
	Project        *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Provider       string    `gorm:"column:provider;not null;uniqueIndex:idx_secret_project_provider" json:"provider"`
	EncryptedValue string    `gorm:"column:encrypted_value;not null" json:"-"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Secret) TableName() string { return "secret" }
