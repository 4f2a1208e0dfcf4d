package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	mw "github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/services"
	"github.com/voltade/platform-engine/internal/token"
	"github.com/voltade/platform-engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.Environment{},
		&models.App{},
		&models.AppBuild{},
		&models.AppInstallation{},
		&models.EnvVar{},
		&models.SigningKey{},
	))
	return db
}

func newIssuer(t *testing.T, db *gorm.DB) *token.Issuer {
	t.Helper()
	iss, err := token.LoadOrGenerate(context.Background(), repository.NewSigningKeyRepository(db))
	require.NoError(t, err)
	return iss
}

func doJSON(t *testing.T, h http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// fakeEnvVars serves a canned env var map.
type fakeEnvVars struct {
	values map[string]string
}

func (f *fakeEnvVars) Create(ctx context.Context, orgID, envID uuid.UUID, name, value string) (*models.EnvVar, error) {
	return &models.EnvVar{ID: uuid.New(), OrganizationID: orgID, EnvironmentID: envID, Name: name}, nil
}

func (f *fakeEnvVars) List(ctx context.Context, orgID, envID uuid.UUID) ([]models.EnvVar, error) {
	return nil, nil
}

func (f *fakeEnvVars) Delete(ctx context.Context, id, orgID uuid.UUID) error { return nil }

func (f *fakeEnvVars) FetchForRunner(ctx context.Context, orgID, envID uuid.UUID) (map[string]string, error) {
	return f.values, nil
}

func TestRunnerEnvVarFetchScoping(t *testing.T) {
	db := openTestDB(t)
	iss := newIssuer(t, db)

	orgID := uuid.New()
	envID := uuid.New()

	h := NewEnvVarsHandler(&fakeEnvVars{values: map[string]string{"API_KEY": "k-123"}})
	r := chi.NewRouter()
	r.Group(func(rr chi.Router) {
		rr.Use(mw.Auth(iss))
		rr.Use(mw.RequireRole(token.RoleRunner))
		rr.Get("/env_vars/{orgId}/{envId}", h.FetchForRunner)
	})

	path := "/env_vars/" + orgID.String() + "/" + envID.String()

	runnerTok, err := iss.Sign(token.RunnerClaims(orgID.String(), "acme", envID.String(), "staging", time.Hour))
	require.NoError(t, err)

	rr := doJSON(t, r, http.MethodGet, path, runnerTok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var values map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &values))
	require.Equal(t, map[string]string{"API_KEY": "k-123"}, values)

	// Runner token for a different environment of the same org.
	foreignTok, err := iss.Sign(token.RunnerClaims(orgID.String(), "acme", uuid.NewString(), "prod", time.Hour))
	require.NoError(t, err)
	rr = doJSON(t, r, http.MethodGet, path, foreignTok, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// A service_role token never reaches this endpoint.
	serviceTok, err := iss.Sign(token.KeyClaims(token.RoleServiceRole, "acme", time.Hour))
	require.NoError(t, err)
	rr = doJSON(t, r, http.MethodGet, path, serviceTok, "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, r, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBuildStatusCallbackAuth(t *testing.T) {
	db := openTestDB(t)

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	app := &models.App{
		OrganizationID: org.ID, Slug: "crm",
		GitRepoURL: "https://github.com/acme/crm.git", BuildCommand: "bun run build", OutputPath: "dist",
	}
	require.NoError(t, db.Create(app).Error)
	build := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildBuilding}
	require.NoError(t, db.Create(build).Error)

	svc := services.NewBuildService(
		services.BuildConfig{},
		repository.NewBuildRepository(db),
		repository.NewAppRepository(db),
		repository.NewOrganizationRepository(db),
		nil,
		nil,
	)
	h := NewBuildsHandler(svc)
	r := chi.NewRouter()
	r.With(mw.StaticBearer("runner-secret")).Patch("/builds/{buildId}/status", h.Status)

	path := "/builds/" + build.ID.String() + "/status"
	body := `{"appId":"` + app.ID.String() + `","orgId":"` + org.ID.String() + `","status":"ready"}`

	rr := doJSON(t, r, http.MethodPatch, path, "wrong-secret", body)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, r, http.MethodPatch, path, "runner-secret", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var row models.AppBuild
	require.NoError(t, db.First(&row, "id = ?", build.ID).Error)
	require.Equal(t, models.BuildReady, row.Status)

	// Terminal now: the same report is rejected, not replayed.
	rr = doJSON(t, r, http.MethodPatch, path, "runner-secret", body)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, r, http.MethodPatch, path, "runner-secret",
		`{"appId":"`+app.ID.String()+`","orgId":"`+org.ID.String()+`","status":"done"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGeneratorEndpointAuth(t *testing.T) {
	handlerHit := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerHit = true
		w.WriteHeader(http.StatusOK)
	})

	guard := mw.GeneratorAuth("gen-secret", "engine.platform.svc", true)
	h := guard(inner)

	req := httptest.NewRequest(http.MethodPost, "/getparams.execute", nil)
	req.Host = "engine.platform.svc"
	req.Header.Set("Authorization", "Bearer gen-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, handlerHit)

	// Wrong host in production.
	handlerHit = false
	req = httptest.NewRequest(http.MethodPost, "/getparams.execute", nil)
	req.Host = "engine.example.com"
	req.Header.Set("Authorization", "Bearer gen-secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.False(t, handlerHit)

	// Wrong token.
	req = httptest.NewRequest(http.MethodPost, "/getparams.execute", nil)
	req.Host = "engine.platform.svc"
	req.Header.Set("Authorization", "Bearer nope")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestEnvironmentDeleteRefusedWhileInstalled(t *testing.T) {
	db := openTestDB(t)
	iss := newIssuer(t, db)

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	env := &models.Environment{
		OrganizationID: org.ID, Name: "Staging", Slug: "staging",
		RunnerCount: 1, DatabaseInstanceCount: 1,
	}
	require.NoError(t, db.Create(env).Error)
	app := &models.App{
		OrganizationID: org.ID, Slug: "crm",
		GitRepoURL: "https://github.com/acme/crm.git", BuildCommand: "bun run build", OutputPath: "dist",
	}
	require.NoError(t, db.Create(app).Error)
	build := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildReady}
	require.NoError(t, db.Create(build).Error)
	install := &models.AppInstallation{
		AppID: app.ID, EnvironmentID: env.ID, OrganizationID: org.ID, AppBuildID: build.ID,
	}
	require.NoError(t, db.Create(install).Error)

	h := NewEnvironmentsHandler(repository.NewEnvironmentRepository(db))
	r := chi.NewRouter()
	r.Group(func(dev chi.Router) {
		dev.Use(mw.Auth(iss))
		dev.Use(mw.RequireRole(token.RoleServiceRole))
		dev.Use(mw.ResolveOrg(repository.NewOrganizationRepository(db)))
		dev.Delete("/environments/{id}", h.Delete)
	})

	serviceTok, err := iss.Sign(token.KeyClaims(token.RoleServiceRole, "acme", time.Hour))
	require.NoError(t, err)

	path := "/environments/" + env.ID.String()

	// The installation still references the environment.
	rr := doJSON(t, r, http.MethodDelete, path, serviceTok, "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.NoError(t, db.First(&models.Environment{}, "id = ?", env.ID).Error)

	require.NoError(t, db.Delete(install).Error)

	rr = doJSON(t, r, http.MethodDelete, path, serviceTok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var count int64
	require.NoError(t, db.Model(&models.Environment{}).Where("id = ?", env.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestPublicInstallationLookup(t *testing.T) {
	db := openTestDB(t)

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)
	prod := &models.Environment{
		OrganizationID: org.ID, Name: "Production", Slug: "prod", Production: true,
		RunnerCount: 1, DatabaseInstanceCount: 1,
	}
	require.NoError(t, db.Create(prod).Error)
	app := &models.App{
		OrganizationID: org.ID, Slug: "crm", Public: true,
		GitRepoURL: "https://github.com/acme/crm.git", BuildCommand: "bun run build", OutputPath: "dist",
	}
	require.NoError(t, db.Create(app).Error)
	private := &models.App{
		OrganizationID: org.ID, Slug: "internal-tool",
		GitRepoURL: "https://github.com/acme/internal.git", BuildCommand: "bun run build", OutputPath: "dist",
	}
	require.NoError(t, db.Create(private).Error)
	build := &models.AppBuild{AppID: app.ID, OrganizationID: org.ID, Status: models.BuildReady}
	require.NoError(t, db.Create(build).Error)
	for _, a := range []*models.App{app, private} {
		require.NoError(t, db.Create(&models.AppInstallation{
			AppID: a.ID, EnvironmentID: prod.ID, OrganizationID: org.ID, AppBuildID: build.ID,
		}).Error)
	}

	// The lookup never mints tokens or pushes, so issuer and runner stay nil.
	svc := services.NewInstallationService(
		repository.NewInstallationRepository(db),
		repository.NewAppRepository(db),
		repository.NewEnvironmentRepository(db),
		repository.NewOrganizationRepository(db),
		repository.NewBuildRepository(db),
		nil, nil, time.Hour,
	)
	h := NewInstallationsHandler(svc)
	r := chi.NewRouter()
	r.Get("/installations/public", h.GetPublic)

	rr := doJSON(t, r, http.MethodGet, "/installations/public?organizationSlug=acme&appSlug=crm", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), build.ID.String())

	// Private apps stay invisible even when installed in production.
	rr = doJSON(t, r, http.MethodGet, "/installations/public?organizationSlug=acme&appSlug=internal-tool", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, r, http.MethodGet, "/installations/public?organizationSlug=acme", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAppsCRUDThroughAuthChain(t *testing.T) {
	db := openTestDB(t)
	iss := newIssuer(t, db)

	org := &models.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)

	appRepo := repository.NewAppRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	h := NewAppsHandler(appRepo)

	r := chi.NewRouter()
	r.Group(func(dev chi.Router) {
		dev.Use(mw.Auth(iss))
		dev.Use(mw.RequireRole(token.RoleAnon, token.RoleServiceRole))
		dev.Use(mw.ResolveOrg(orgRepo))
		dev.Get("/apps", h.List)
		dev.With(mw.RequireRole(token.RoleServiceRole)).Post("/apps", h.Create)
	})

	serviceTok, err := iss.Sign(token.KeyClaims(token.RoleServiceRole, "acme", time.Hour))
	require.NoError(t, err)
	anonTok, err := iss.Sign(token.KeyClaims(token.RoleAnon, "acme", time.Hour))
	require.NoError(t, err)

	body := `{"slug":"crm","git_repo_url":"https://github.com/acme/crm.git","build_command":"bun run build","output_path":"dist"}`

	// Mutation requires service_role.
	rr := doJSON(t, r, http.MethodPost, "/apps", anonTok, body)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/apps", serviceTok, body)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created models.App
	require.NoError(t, db.First(&created, "slug = ?", "crm").Error)
	require.Equal(t, org.ID, created.OrganizationID)

	// Reads work with either role, scoped to the token's org.
	rr = doJSON(t, r, http.MethodGet, "/apps", anonTok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"slug":"crm"`)

	// An unknown org audience is rejected before any handler runs.
	strangerTok, err := iss.Sign(token.KeyClaims(token.RoleServiceRole, "nobody", time.Hour))
	require.NoError(t, err)
	rr = doJSON(t, r, http.MethodGet, "/apps", strangerTok, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
