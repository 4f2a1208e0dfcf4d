package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppInstallation binds one App to one Environment within one Organization and
// points at the build the tenant runner currently serves for that binding.
// At most one row may exist per (app, environment, organization) triple.
type AppInstallation struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_installations_triple,priority:1" json:"app_id" validate:"required"`
	EnvironmentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_installations_triple,priority:2" json:"environment_id" validate:"required"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_installations_triple,priority:3" json:"organization_id" validate:"required"`
	AppBuildID     uuid.UUID `gorm:"type:uuid;not null" json:"app_build_id" validate:"required"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (i *AppInstallation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
