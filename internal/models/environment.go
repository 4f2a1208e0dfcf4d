package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Environment is a tenant-scoped execution context. Each installation binds an
// app build into exactly one environment, and the provisioning generator
// emits one parameter set per (organization, environment) pair.
type Environment struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID        uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_environments_org_slug,priority:1" json:"organization_id" validate:"required"`
	Name                  string    `gorm:"not null" json:"name" validate:"required"`
	Slug                  string    `gorm:"not null;uniqueIndex:idx_environments_org_slug,priority:2" json:"slug" validate:"required"`
	Production            bool      `gorm:"not null;default:false" json:"production"`
	RunnerCount           int       `gorm:"not null;default:1" json:"runner_count" validate:"gte=1"`
	DatabaseInstanceCount int       `gorm:"not null;default:1" json:"database_instance_count" validate:"gte=1"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (e *Environment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
