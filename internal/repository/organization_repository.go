package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type OrganizationRepository interface {
	BaseRepository[models.Organization]
	GetBySlug(ctx context.Context, slug string, dest *models.Organization) error
	// MapByID bulk-loads organizations for the provisioning generator so the
	// per-environment loop does not issue one query per row.
	MapByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Organization, error)
}

type organizationRepository struct {
	BaseRepository[models.Organization]
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{BaseRepository: NewBaseRepository[models.Organization](db), db: db}
}

func (r *organizationRepository) GetBySlug(ctx context.Context, slug string, dest *models.Organization) error {
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "organization not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get organization failed")
	}
	return nil
}

func (r *organizationRepository) MapByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Organization, error) {
	var rows []models.Organization
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "load organizations failed")
	}
	out := make(map[uuid.UUID]models.Organization, len(rows))
	for _, o := range rows {
		out[o.ID] = o
	}
	return out, nil
}
