package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type InstallationRepository interface {
	BaseRepository[models.AppInstallation]
	GetByTriple(ctx context.Context, appID, envID, orgID uuid.UUID, dest *models.AppInstallation) error
	// GetPublic resolves an installation by slugs for unauthenticated discovery.
	// Only public apps installed in a production environment are visible.
	GetPublic(ctx context.Context, orgSlug, appSlug string, dest *models.AppInstallation) error
	ListByEnvironment(ctx context.Context, envID, orgID uuid.UUID) ([]models.AppInstallation, error)
	// SetBuild swaps the active build pointer for an existing installation.
	SetBuild(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) error
	DeleteByTriple(ctx context.Context, appID, envID, orgID uuid.UUID) error
}

type installationRepository struct {
	BaseRepository[models.AppInstallation]
	db *gorm.DB
}

func NewInstallationRepository(db *gorm.DB) InstallationRepository {
	return &installationRepository{BaseRepository: NewBaseRepository[models.AppInstallation](db), db: db}
}

func (r *installationRepository) GetByTriple(ctx context.Context, appID, envID, orgID uuid.UUID, dest *models.AppInstallation) error {
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND environment_id = ? AND organization_id = ?", appID, envID, orgID).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "installation not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get installation failed")
	}
	return nil
}

func (r *installationRepository) GetPublic(ctx context.Context, orgSlug, appSlug string, dest *models.AppInstallation) error {
	err := r.db.WithContext(ctx).
		Model(&models.AppInstallation{}).
		Select("app_installations.*").
		Joins("JOIN apps ON apps.id = app_installations.app_id AND apps.deleted_at IS NULL").
		Joins("JOIN organizations ON organizations.id = app_installations.organization_id").
		Joins("JOIN environments ON environments.id = app_installations.environment_id").
		Where("organizations.slug = ? AND apps.slug = ? AND apps.public = ? AND environments.production = ?",
			orgSlug, appSlug, true, true).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "installation not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get public installation failed")
	}
	return nil
}

func (r *installationRepository) ListByEnvironment(ctx context.Context, envID, orgID uuid.UUID) ([]models.AppInstallation, error) {
	var out []models.AppInstallation
	if err := r.db.WithContext(ctx).
		Where("environment_id = ? AND organization_id = ?", envID, orgID).
		Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list installations failed")
	}
	return out, nil
}

func (r *installationRepository) SetBuild(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.AppInstallation{}).
		Where("app_id = ? AND environment_id = ? AND organization_id = ?", appID, envID, orgID).
		Updates(map[string]any{"app_build_id": buildID, "updated_at": time.Now()})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update installation failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "installation not found")
	}
	return nil
}

func (r *installationRepository) DeleteByTriple(ctx context.Context, appID, envID, orgID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("app_id = ? AND environment_id = ? AND organization_id = ?", appID, envID, orgID).
		Delete(&models.AppInstallation{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete installation failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "installation not found")
	}
	return nil
}
