package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/runner"
	"github.com/voltade/platform-engine/internal/token"
	appErr "github.com/voltade/platform-engine/pkg/errors"
	"github.com/voltade/platform-engine/pkg/logger"
)

// InstallationService binds app builds into environments and pushes the
// activation to the tenant runner. Persistence always precedes the push: a
// runner that is down never loses the installation record, it just serves the
// previous build until the next successful activation.
type InstallationService interface {
	// Install creates the (app, environment) binding and activates buildID on
	// the environment's runner.
	Install(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) (*models.AppInstallation, error)
	// SetBuild repoints an existing installation at buildID and pushes the
	// swap to the runner.
	SetBuild(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) (*models.AppInstallation, error)
	Get(ctx context.Context, appID, envID, orgID uuid.UUID) (*models.AppInstallation, error)
	// GetPublic resolves an installation by organization and app slug for
	// unauthenticated callers. Only public apps installed in a production
	// environment resolve; anything else reads as not found.
	GetPublic(ctx context.Context, orgSlug, appSlug string) (*models.AppInstallation, error)
	ListByEnvironment(ctx context.Context, envID, orgID uuid.UUID) ([]models.AppInstallation, error)
	Uninstall(ctx context.Context, appID, envID, orgID uuid.UUID) error
}

type installationService struct {
	installRepo repository.InstallationRepository
	appRepo     repository.AppRepository
	envRepo     repository.EnvironmentRepository
	orgRepo     repository.OrganizationRepository
	buildRepo   repository.BuildRepository
	issuer      *token.Issuer
	runner      runner.Client
	tokenTTL    time.Duration
}

func NewInstallationService(
	installRepo repository.InstallationRepository,
	appRepo repository.AppRepository,
	envRepo repository.EnvironmentRepository,
	orgRepo repository.OrganizationRepository,
	buildRepo repository.BuildRepository,
	issuer *token.Issuer,
	runnerClient runner.Client,
	tokenTTL time.Duration,
) InstallationService {
	return &installationService{
		installRepo: installRepo,
		appRepo:     appRepo,
		envRepo:     envRepo,
		orgRepo:     orgRepo,
		buildRepo:   buildRepo,
		issuer:      issuer,
		runner:      runnerClient,
		tokenTTL:    tokenTTL,
	}
}

var _ InstallationService = (*installationService)(nil)

// deployTarget is everything an activation push needs, loaded and ownership
// checked up front so a bad id fails before any row is written.
type deployTarget struct {
	app   models.App
	env   models.Environment
	org   models.Organization
	build models.AppBuild
}

func (s *installationService) loadTarget(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) (*deployTarget, error) {
	t := &deployTarget{}
	if err := s.appRepo.GetOwned(ctx, appID, orgID, &t.app); err != nil {
		return nil, err
	}
	if err := s.envRepo.GetOwned(ctx, envID, orgID, &t.env); err != nil {
		return nil, err
	}
	if err := s.orgRepo.GetByID(ctx, orgID, &t.org); err != nil {
		return nil, err
	}
	if err := s.buildRepo.GetTriple(ctx, buildID, appID, orgID, &t.build); err != nil {
		return nil, err
	}
	if t.build.Status != models.BuildReady {
		return nil, appErr.New(appErr.CodeConflict, "build is not ready to install").
			WithMeta("status", string(t.build.Status))
	}
	return t, nil
}

func (s *installationService) Install(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) (*models.AppInstallation, error) {
	target, err := s.loadTarget(ctx, appID, envID, orgID, buildID)
	if err != nil {
		return nil, err
	}

	var existing models.AppInstallation
	if err := s.installRepo.GetByTriple(ctx, appID, envID, orgID, &existing); err == nil {
		return nil, appErr.New(appErr.CodeAlreadyExists, "app is already installed in this environment")
	} else if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	install := &models.AppInstallation{
		AppID:          appID,
		EnvironmentID:  envID,
		OrganizationID: orgID,
		AppBuildID:     buildID,
	}
	if err := s.installRepo.Create(ctx, install); err != nil {
		return nil, err
	}

	if err := s.push(ctx, target, buildID); err != nil {
		return install, err
	}

	logger.L().Info("app installed",
		zap.String("app_id", appID.String()),
		zap.String("env_id", envID.String()),
		zap.String("build_id", buildID.String()),
	)
	return install, nil
}

func (s *installationService) SetBuild(ctx context.Context, appID, envID, orgID, buildID uuid.UUID) (*models.AppInstallation, error) {
	target, err := s.loadTarget(ctx, appID, envID, orgID, buildID)
	if err != nil {
		return nil, err
	}

	if err := s.installRepo.SetBuild(ctx, appID, envID, orgID, buildID); err != nil {
		return nil, err
	}

	var install models.AppInstallation
	if err := s.installRepo.GetByTriple(ctx, appID, envID, orgID, &install); err != nil {
		return nil, err
	}

	if err := s.push(ctx, target, buildID); err != nil {
		return &install, err
	}

	logger.L().Info("installation build updated",
		zap.String("app_id", appID.String()),
		zap.String("env_id", envID.String()),
		zap.String("build_id", buildID.String()),
	)
	return &install, nil
}

// push mints a runner-scoped token for the target environment and tells its
// runner to activate buildID. The installation row is already committed when
// this runs, so a failure is reported as saved-but-not-activated rather than
// rolled back.
func (s *installationService) push(ctx context.Context, t *deployTarget, buildID uuid.UUID) error {
	claims := token.RunnerClaims(
		t.org.ID.String(), t.org.Slug,
		t.env.ID.String(), t.env.Slug,
		s.tokenTTL,
	)
	bearer, err := s.issuer.Sign(claims)
	if err != nil {
		return err
	}

	if err := s.runner.Activate(ctx, t.org.Slug, t.env.Slug, t.app.Slug, buildID.String(), bearer); err != nil {
		logger.L().Warn("installation saved but runner activation failed",
			zap.Error(err),
			zap.String("app_id", t.app.ID.String()),
			zap.String("env_id", t.env.ID.String()),
			zap.String("build_id", buildID.String()),
		)
		return appErr.Wrap(err, appErr.CodeUnavailable, "installation saved but activation push failed").
			WithMeta("installation_saved", true)
	}
	return nil
}

func (s *installationService) Get(ctx context.Context, appID, envID, orgID uuid.UUID) (*models.AppInstallation, error) {
	var install models.AppInstallation
	if err := s.installRepo.GetByTriple(ctx, appID, envID, orgID, &install); err != nil {
		return nil, err
	}
	return &install, nil
}

func (s *installationService) GetPublic(ctx context.Context, orgSlug, appSlug string) (*models.AppInstallation, error) {
	var install models.AppInstallation
	if err := s.installRepo.GetPublic(ctx, orgSlug, appSlug, &install); err != nil {
		return nil, err
	}
	return &install, nil
}

func (s *installationService) ListByEnvironment(ctx context.Context, envID, orgID uuid.UUID) ([]models.AppInstallation, error) {
	var env models.Environment
	if err := s.envRepo.GetOwned(ctx, envID, orgID, &env); err != nil {
		return nil, err
	}
	return s.installRepo.ListByEnvironment(ctx, envID, orgID)
}

func (s *installationService) Uninstall(ctx context.Context, appID, envID, orgID uuid.UUID) error {
	if err := s.installRepo.DeleteByTriple(ctx, appID, envID, orgID); err != nil {
		return err
	}
	logger.L().Info("app uninstalled",
		zap.String("app_id", appID.String()),
		zap.String("env_id", envID.String()),
	)
	return nil
}
