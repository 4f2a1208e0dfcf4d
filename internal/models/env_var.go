package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnvVar is one named environment variable for an (organization, environment)
// pair. Only the name and ownership live here; the value is stored in Vault
// under the row id and joined back at fetch time.
type EnvVar struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_env_vars_scope_name,priority:1" json:"organization_id" validate:"required"`
	EnvironmentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_env_vars_scope_name,priority:2" json:"environment_id" validate:"required"`
	Name           string    `gorm:"not null;uniqueIndex:idx_env_vars_scope_name,priority:3" json:"name" validate:"required"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (v *EnvVar) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
