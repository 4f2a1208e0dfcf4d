package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// App identifies a buildable unit: a source repository plus the instructions
// to turn it into a servable artifact.
type App struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;index;not null;uniqueIndex:idx_apps_org_slug,priority:1" json:"organization_id" validate:"required"`
	Slug           string         `gorm:"not null;uniqueIndex:idx_apps_org_slug,priority:2" json:"slug" validate:"required"`
	Name           string         `json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	Public         bool           `gorm:"not null;default:false" json:"public"`
	GitRepoURL     string         `gorm:"not null" json:"git_repo_url" validate:"required"`
	GitRepoBranch  string         `gorm:"not null;default:main" json:"git_repo_branch"`
	GitRepoPath    string         `json:"git_repo_path"`
	BuildCommand   string         `gorm:"not null" json:"build_command" validate:"required"`
	OutputPath     string         `gorm:"not null" json:"output_path" validate:"required"`
	Entrypoint     string         `json:"entrypoint"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *App) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
