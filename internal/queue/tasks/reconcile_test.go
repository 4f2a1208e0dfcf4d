package tasks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/services"
	"github.com/voltade/platform-engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

func TestHandleBuildReconcile(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Organization{}, &models.App{}, &models.AppBuild{}))

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	app := &models.App{
		OrganizationID: org.ID,
		Slug:           "crm",
		GitRepoURL:     "https://github.com/acme/crm.git",
		BuildCommand:   "bun run build",
		OutputPath:     "dist",
	}
	require.NoError(t, db.Create(app).Error)

	stale := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildBuilding}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Model(stale).UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	active := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildBuilding}
	require.NoError(t, db.Create(active).Error)

	svc := services.NewBuildService(
		services.BuildConfig{},
		repository.NewBuildRepository(db),
		repository.NewAppRepository(db),
		repository.NewOrganizationRepository(db),
		nil, nil,
	)

	handler := NewReconcileTaskHandler(svc, 30*time.Minute)
	require.NoError(t, handler.HandleBuildReconcile(context.Background(), NewBuildReconcileTask()))

	var staleRow, activeRow models.AppBuild
	require.NoError(t, db.First(&staleRow, "id = ?", stale.ID).Error)
	require.NoError(t, db.First(&activeRow, "id = ?", active.ID).Error)
	require.Equal(t, models.BuildError, staleRow.Status)
	require.Equal(t, models.BuildBuilding, activeRow.Status)
}
