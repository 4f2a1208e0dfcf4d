package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type EnvironmentRepository interface {
	BaseRepository[models.Environment]
	GetOwned(ctx context.Context, envID, orgID uuid.UUID, dest *models.Environment) error
	GetBySlug(ctx context.Context, orgID uuid.UUID, slug string, dest *models.Environment) error
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.Environment, error)
	// DeleteOwned refuses to remove an environment that installations still
	// reference.
	DeleteOwned(ctx context.Context, envID, orgID uuid.UUID) error
	// ListAll enumerates every environment across organizations. Used only by
	// the provisioning generator, which is the one legitimate cross-tenant read.
	ListAll(ctx context.Context) ([]models.Environment, error)
}

type environmentRepository struct {
	BaseRepository[models.Environment]
	db *gorm.DB
}

func NewEnvironmentRepository(db *gorm.DB) EnvironmentRepository {
	return &environmentRepository{BaseRepository: NewBaseRepository[models.Environment](db), db: db}
}

func (r *environmentRepository) GetOwned(ctx context.Context, envID, orgID uuid.UUID, dest *models.Environment) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", envID, orgID).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "environment not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get environment failed")
	}
	return nil
}

func (r *environmentRepository) GetBySlug(ctx context.Context, orgID uuid.UUID, slug string, dest *models.Environment) error {
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND slug = ?", orgID, slug).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "environment not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get environment failed")
	}
	return nil
}

func (r *environmentRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.Environment, error) {
	var out []models.Environment
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list environments failed")
	}
	return out, nil
}

func (r *environmentRepository) DeleteOwned(ctx context.Context, envID, orgID uuid.UUID) error {
	var refs int64
	if err := r.db.WithContext(ctx).Model(&models.AppInstallation{}).
		Where("environment_id = ? AND organization_id = ?", envID, orgID).
		Count(&refs).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "count installations failed")
	}
	if refs > 0 {
		return appErr.New(appErr.CodeConflict, "environment still has installations")
	}

	res := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", envID, orgID).
		Delete(&models.Environment{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete environment failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "environment not found")
	}
	return nil
}

func (r *environmentRepository) ListAll(ctx context.Context) ([]models.Environment, error) {
	var out []models.Environment
	if err := r.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list all environments failed")
	}
	return out, nil
}
