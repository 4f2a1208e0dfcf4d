package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type EnvVarRepository interface {
	BaseRepository[models.EnvVar]
	ListByScope(ctx context.Context, orgID, envID uuid.UUID) ([]models.EnvVar, error)
	DeleteOwned(ctx context.Context, id, orgID uuid.UUID) error
}

type envVarRepository struct {
	BaseRepository[models.EnvVar]
	db *gorm.DB
}

func NewEnvVarRepository(db *gorm.DB) EnvVarRepository {
	return &envVarRepository{BaseRepository: NewBaseRepository[models.EnvVar](db), db: db}
}

func (r *envVarRepository) ListByScope(ctx context.Context, orgID, envID uuid.UUID) ([]models.EnvVar, error) {
	var out []models.EnvVar
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND environment_id = ?", orgID, envID).
		Order("name").
		Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list env vars failed")
	}
	return out, nil
}

func (r *envVarRepository) DeleteOwned(ctx context.Context, id, orgID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		Delete(&models.EnvVar{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete env var failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "env var not found")
	}
	return nil
}
