package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voltade/platform-engine/internal/models"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type SigningKeyRepository interface {
	// GetCurrent loads the platform keypair row.
	GetCurrent(ctx context.Context, dest *models.SigningKey) error
	// InsertIfAbsent stores the generated keypair unless one already exists.
	// Losing the insert race is not an error: the caller reloads the winner.
	InsertIfAbsent(ctx context.Context, key *models.SigningKey) error
}

type signingKeyRepository struct {
	db *gorm.DB
}

func NewSigningKeyRepository(db *gorm.DB) SigningKeyRepository {
	return &signingKeyRepository{db: db}
}

func (r *signingKeyRepository) GetCurrent(ctx context.Context, dest *models.SigningKey) error {
	err := r.db.WithContext(ctx).Order("created_at DESC").First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "signing key not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get signing key failed")
	}
	return nil
}

func (r *signingKeyRepository) InsertIfAbsent(ctx context.Context, key *models.SigningKey) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(key).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "insert signing key failed")
	}
	return nil
}
