package main

import (
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
)

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		// Tenancy
		&models.Organization{},
		&models.Environment{},

		// Apps & builds
		&models.App{},
		&models.AppBuild{},
		&models.AppInstallation{},

		// Configuration & signing
		&models.EnvVar{},
		&models.SigningKey{},
	}
}

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		enableUUIDExtension,
		addBuildLookupIndex,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

// enableUUIDExtension ensures UUID generation is available
func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addBuildLookupIndex covers the staleness sweep's status + updated_at scan.
func addBuildLookupIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_app_builds_status_updated
		ON app_builds(status, updated_at)
	`).Error
}
