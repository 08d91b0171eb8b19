package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	IntegrationTypeJira        = "jira"
	IntegrationTypeAzureDevOps = "azure_devops"
	IntegrationTypeConfluence  = "confluence"
	IntegrationTypeSharePoint  = "sharepoint"
)

// IsTrackerType reports whether an integration type is an issue tracker.
// At most one tracker-kind integration may be active per project.
func IsTrackerType(t string) bool {
	return t == IntegrationTypeJira || t == IntegrationTypeAzureDevOps
}

type Integration struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Type      string    `gorm:"column:type;not null" json:"type"`

	// Provider-specific connection metadata: base URL and project key for
	// Jira, organization and project name for Azure DevOps. Opaque here.
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata"`

	IsActive       bool   `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CredentialsRef string `gorm:"column:credentials_ref" json:"credentials_ref,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Integration) TableName() string { return "integration" }
