package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/token"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type activation struct {
	orgSlug, envSlug, appSlug, buildID, bearer string
}

// fakeRunner records activation pushes and can be told to fail.
type fakeRunner struct {
	calls []activation
	err   error
}

func (f *fakeRunner) Activate(ctx context.Context, orgSlug, envSlug, appSlug, buildID, bearer string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, activation{orgSlug, envSlug, appSlug, buildID, bearer})
	return nil
}

type installFixture struct {
	db      *gorm.DB
	svc     InstallationService
	runner  *fakeRunner
	issuer  *token.Issuer
	org     *models.Organization
	env     *models.Environment
	app     *models.App
	build   *models.AppBuild
	pending *models.AppBuild
}

func newInstallFixture(t *testing.T) *installFixture {
	t.Helper()
	db := openTestDB(t)
	org, app := seedAppTree(t, db)

	env := &models.Environment{
		OrganizationID:        org.ID,
		Name:                  "Staging",
		Slug:                  "staging",
		RunnerCount:           1,
		DatabaseInstanceCount: 1,
	}
	require.NoError(t, db.Create(env).Error)

	build := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildReady}
	require.NoError(t, db.Create(build).Error)
	pending := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildPending}
	require.NoError(t, db.Create(pending).Error)

	issuer, err := token.LoadOrGenerate(context.Background(), repository.NewSigningKeyRepository(db))
	require.NoError(t, err)

	runner := &fakeRunner{}
	svc := NewInstallationService(
		repository.NewInstallationRepository(db),
		repository.NewAppRepository(db),
		repository.NewEnvironmentRepository(db),
		repository.NewOrganizationRepository(db),
		repository.NewBuildRepository(db),
		issuer, runner, time.Hour,
	)
	return &installFixture{db: db, svc: svc, runner: runner, issuer: issuer, org: org, env: env, app: app, build: build, pending: pending}
}

func TestInstallPersistsThenPushes(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()

	install, err := f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)
	require.Equal(t, f.build.ID, install.AppBuildID)

	require.Len(t, f.runner.calls, 1)
	call := f.runner.calls[0]
	require.Equal(t, "acme", call.orgSlug)
	require.Equal(t, "staging", call.envSlug)
	require.Equal(t, "crm", call.appSlug)
	require.Equal(t, f.build.ID.String(), call.buildID)

	// The push bearer is a runner token scoped to exactly this pair.
	claims, err := f.issuer.Verify(ctx, call.bearer)
	require.NoError(t, err)
	require.Equal(t, token.RoleRunner, claims.Role)
	require.Equal(t, f.org.ID.String(), claims.OrgID)
	require.Equal(t, f.env.ID.String(), claims.EnvID)
}

func TestInstallDuplicateTriple(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()

	_, err := f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)

	_, err = f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeAlreadyExists))
	require.Len(t, f.runner.calls, 1, "a rejected install must not push")
}

func TestInstallRequiresReadyBuild(t *testing.T) {
	f := newInstallFixture(t)

	_, err := f.svc.Install(context.Background(), f.app.ID, f.env.ID, f.org.ID, f.pending.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeConflict))
	require.Empty(t, f.runner.calls)

	var count int64
	require.NoError(t, f.db.Model(&models.AppInstallation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestInstallPushFailureKeepsRow(t *testing.T) {
	f := newInstallFixture(t)
	f.runner.err = appErr.New(appErr.CodeUnavailable, "runner returned status 502")

	install, err := f.svc.Install(context.Background(), f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	// The distinct saved-but-not-activated shape: row returned and persisted,
	// error meta flags the saved record.
	require.NotNil(t, install)
	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, true, ae.Meta["installation_saved"])

	var row models.AppInstallation
	require.NoError(t, f.db.First(&row, "app_id = ?", f.app.ID).Error)
	require.Equal(t, f.build.ID, row.AppBuildID)
}

func TestSetBuildRepointsAndPushesOnce(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()

	_, err := f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)

	next := &models.AppBuild{AppID: f.app.ID, OrganizationID: f.org.ID, Status: models.BuildReady}
	require.NoError(t, f.db.Create(next).Error)

	install, err := f.svc.SetBuild(ctx, f.app.ID, f.env.ID, f.org.ID, next.ID)
	require.NoError(t, err)
	require.Equal(t, next.ID, install.AppBuildID)

	require.Len(t, f.runner.calls, 2)
	require.Equal(t, next.ID.String(), f.runner.calls[1].buildID)
}

func TestSetBuildWithoutInstallation(t *testing.T) {
	f := newInstallFixture(t)

	_, err := f.svc.SetBuild(context.Background(), f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	require.Empty(t, f.runner.calls)
}

func TestUninstall(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()

	_, err := f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Uninstall(ctx, f.app.ID, f.env.ID, f.org.ID))

	items, err := f.svc.ListByEnvironment(ctx, f.env.ID, f.org.ID)
	require.NoError(t, err)
	require.Empty(t, items)

	err = f.svc.Uninstall(ctx, f.app.ID, f.env.ID, f.org.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestGetPublicResolvesOnlyPublicProductionApps(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()

	prod := &models.Environment{
		OrganizationID:        f.org.ID,
		Name:                  "Production",
		Slug:                  "prod",
		Production:            true,
		RunnerCount:           1,
		DatabaseInstanceCount: 1,
	}
	require.NoError(t, f.db.Create(prod).Error)

	_, err := f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)
	_, err = f.svc.Install(ctx, f.app.ID, prod.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)

	// The app is still private, so neither installation resolves.
	_, err = f.svc.GetPublic(ctx, "acme", "crm")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	require.NoError(t, f.db.Model(&models.App{}).
		Where("id = ?", f.app.ID).
		UpdateColumn("public", true).Error)

	// Public now: only the production installation is visible, never staging.
	install, err := f.svc.GetPublic(ctx, "acme", "crm")
	require.NoError(t, err)
	require.Equal(t, prod.ID, install.EnvironmentID)
	require.Equal(t, f.build.ID, install.AppBuildID)

	_, err = f.svc.GetPublic(ctx, "acme", "unknown")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	_, err = f.svc.GetPublic(ctx, "unknown", "crm")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestListByEnvironmentScopesToOrg(t *testing.T) {
	f := newInstallFixture(t)
	ctx := context.Background()

	_, err := f.svc.Install(ctx, f.app.ID, f.env.ID, f.org.ID, f.build.ID)
	require.NoError(t, err)

	// A foreign org cannot even see the environment.
	_, err = f.svc.ListByEnvironment(ctx, f.env.ID, uuid.New())
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}
