package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type AppRepository interface {
	BaseRepository[models.App]
	// GetOwned loads an app only if it belongs to the claimed organization.
	GetOwned(ctx context.Context, appID, orgID uuid.UUID, dest *models.App) error
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.App, error)
	// DeleteOwned refuses to remove an app that installations still reference.
	DeleteOwned(ctx context.Context, appID, orgID uuid.UUID) error
}

type appRepository struct {
	BaseRepository[models.App]
	db *gorm.DB
}

func NewAppRepository(db *gorm.DB) AppRepository {
	return &appRepository{BaseRepository: NewBaseRepository[models.App](db), db: db}
}

func (r *appRepository) GetOwned(ctx context.Context, appID, orgID uuid.UUID, dest *models.App) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", appID, orgID).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "app not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get app failed")
	}
	return nil
}

func (r *appRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]models.App, error) {
	var out []models.App
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list apps failed")
	}
	return out, nil
}

func (r *appRepository) DeleteOwned(ctx context.Context, appID, orgID uuid.UUID) error {
	var refs int64
	if err := r.db.WithContext(ctx).Model(&models.AppInstallation{}).
		Where("app_id = ? AND organization_id = ?", appID, orgID).
		Count(&refs).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "count installations failed")
	}
	if refs > 0 {
		return appErr.New(appErr.CodeConflict, "app still has installations")
	}

	res := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", appID, orgID).
		Delete(&models.App{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete app failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "app not found")
	}
	return nil
}
