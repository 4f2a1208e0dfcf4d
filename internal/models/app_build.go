package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BuildStatus is the lifecycle state of one build attempt.
type BuildStatus string

const (
	BuildPending  BuildStatus = "pending"
	BuildBuilding BuildStatus = "building"
	BuildReady    BuildStatus = "ready"
	BuildError    BuildStatus = "error"
)

// Valid reports whether s is a known build status.
func (s BuildStatus) Valid() bool {
	switch s {
	case BuildPending, BuildBuilding, BuildReady, BuildError:
		return true
	}
	return false
}

// Terminal reports whether no further transition out of s is permitted.
func (s BuildStatus) Terminal() bool {
	return s == BuildReady || s == BuildError
}

// CanTransition reports whether the edge s -> to is on the lifecycle graph
// pending -> building -> {ready, error}. Terminal states accept nothing.
func (s BuildStatus) CanTransition(to BuildStatus) bool {
	switch s {
	case BuildPending:
		return to == BuildBuilding
	case BuildBuilding:
		return to == BuildReady || to == BuildError
	}
	return false
}

// AppBuild is one attempt to materialize an App into an artifact. Rows are
// retained as build history and never deleted; orchestrator-side job objects
// are garbage-collected independently via their TTL.
type AppBuild struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	AppID           uuid.UUID   `gorm:"type:uuid;index;not null" json:"app_id" validate:"required"`
	OrganizationID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"organization_id" validate:"required"`
	Status          BuildStatus `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	PlatformVersion string      `gorm:"not null;default:''" json:"platform_version"`
	// Report holds the job's final callback payload, currently a log tail and
	// report timestamp. Written once, on the transition into a terminal state.
	Report    datatypes.JSON `gorm:"type:jsonb" json:"report,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (b *AppBuild) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BuildPending
	}
	return nil
}
