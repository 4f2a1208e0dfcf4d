package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type BuildRepository interface {
	BaseRepository[models.AppBuild]
	// GetTriple loads a build only when (build, app, organization) all match.
	GetTriple(ctx context.Context, buildID, appID, orgID uuid.UUID, dest *models.AppBuild) error
	ListByApp(ctx context.Context, appID, orgID uuid.UUID) ([]models.AppBuild, error)
	// Transition performs a guarded status update: the row is changed only if
	// its current status equals from. Returns the number of rows changed so the
	// caller can distinguish a lost race from a missing row.
	Transition(ctx context.Context, buildID uuid.UUID, from, to models.BuildStatus) (int64, error)
	// ListStaleBuilding returns builds stuck in building whose updated_at is
	// older than the cutoff.
	ListStaleBuilding(ctx context.Context, cutoff time.Time) ([]models.AppBuild, error)
	// SetReport stores the job's final callback payload on the build row.
	SetReport(ctx context.Context, buildID uuid.UUID, report datatypes.JSON) error
}

type buildRepository struct {
	BaseRepository[models.AppBuild]
	db *gorm.DB
}

func NewBuildRepository(db *gorm.DB) BuildRepository {
	return &buildRepository{BaseRepository: NewBaseRepository[models.AppBuild](db), db: db}
}

func (r *buildRepository) GetTriple(ctx context.Context, buildID, appID, orgID uuid.UUID, dest *models.AppBuild) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND app_id = ? AND organization_id = ?", buildID, appID, orgID).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "build not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get build failed")
	}
	return nil
}

func (r *buildRepository) ListByApp(ctx context.Context, appID, orgID uuid.UUID) ([]models.AppBuild, error) {
	var out []models.AppBuild
	if err := r.db.WithContext(ctx).
		Where("app_id = ? AND organization_id = ?", appID, orgID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list builds failed")
	}
	return out, nil
}

func (r *buildRepository) Transition(ctx context.Context, buildID uuid.UUID, from, to models.BuildStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.AppBuild{}).
		Where("id = ? AND status = ?", buildID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "transition build failed")
	}
	return res.RowsAffected, nil
}

func (r *buildRepository) SetReport(ctx context.Context, buildID uuid.UUID, report datatypes.JSON) error {
	err := r.db.WithContext(ctx).Model(&models.AppBuild{}).
		Where("id = ?", buildID).
		UpdateColumn("report", report).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "set build report failed")
	}
	return nil
}

func (r *buildRepository) ListStaleBuilding(ctx context.Context, cutoff time.Time) ([]models.AppBuild, error) {
	var out []models.AppBuild
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.BuildBuilding, cutoff).
		Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list stale builds failed")
	}
	return out, nil
}
