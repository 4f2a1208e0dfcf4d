package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/voltade/platform-engine/internal/artifact"
	"github.com/voltade/platform-engine/internal/buildjob"
	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	appErr "github.com/voltade/platform-engine/pkg/errors"
	"github.com/voltade/platform-engine/pkg/logger"
)

// BuildService owns the build lifecycle: it creates build records, drives job
// submission, and is the only code path permitted to transition build status.
type BuildService interface {
	// RequestGitBuild creates a build for an app and submits a clone-based job.
	RequestGitBuild(ctx context.Context, appID, orgID uuid.UUID) (*models.AppBuild, error)
	// CreateUploadBuild creates a pending build and returns a presigned URL
	// the client uploads its source bundle to.
	CreateUploadBuild(ctx context.Context, appID, orgID uuid.UUID) (*models.AppBuild, string, error)
	// CompleteUpload is the client's signal that the bundle is uploaded and
	// orchestration should proceed.
	CompleteUpload(ctx context.Context, buildID, appID, orgID uuid.UUID) error
	// ApplyStatusCallback handles an authenticated status report from the job.
	// It revalidates the full (build, app, org) triple before any mutation.
	ApplyStatusCallback(ctx context.Context, buildID, appID, orgID uuid.UUID, status models.BuildStatus, logs string) (*models.AppBuild, error)
	GetBuild(ctx context.Context, buildID, appID, orgID uuid.UUID) (*models.AppBuild, error)
	ListBuilds(ctx context.Context, appID, orgID uuid.UUID) ([]models.AppBuild, error)
	// ExpireStale flips builds stuck in building since before the cutoff to
	// error. Called by the reconciliation sweep, returns how many expired.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type BuildConfig struct {
	JobSpec         buildjob.Spec
	CallbackBaseURL string
	PlatformVersion string
}

type buildService struct {
	cfg       BuildConfig
	buildRepo repository.BuildRepository
	appRepo   repository.AppRepository
	orgRepo   repository.OrganizationRepository
	gateway   artifact.Gateway
	submitter buildjob.Submitter
}

func NewBuildService(
	cfg BuildConfig,
	buildRepo repository.BuildRepository,
	appRepo repository.AppRepository,
	orgRepo repository.OrganizationRepository,
	gateway artifact.Gateway,
	submitter buildjob.Submitter,
) BuildService {
	return &buildService{
		cfg:       cfg,
		buildRepo: buildRepo,
		appRepo:   appRepo,
		orgRepo:   orgRepo,
		gateway:   gateway,
		submitter: submitter,
	}
}

var _ BuildService = (*buildService)(nil)

func (s *buildService) RequestGitBuild(ctx context.Context, appID, orgID uuid.UUID) (*models.AppBuild, error) {
	var app models.App
	if err := s.appRepo.GetOwned(ctx, appID, orgID, &app); err != nil {
		return nil, err
	}

	build := &models.AppBuild{
		AppID:           appID,
		OrganizationID:  orgID,
		Status:          models.BuildPending,
		PlatformVersion: s.cfg.PlatformVersion,
	}
	if err := s.buildRepo.Create(ctx, build); err != nil {
		return nil, err
	}

	if err := s.submit(ctx, &app, build, false); err != nil {
		return nil, err
	}
	build.Status = models.BuildBuilding
	return build, nil
}

func (s *buildService) CreateUploadBuild(ctx context.Context, appID, orgID uuid.UUID) (*models.AppBuild, string, error) {
	var app models.App
	if err := s.appRepo.GetOwned(ctx, appID, orgID, &app); err != nil {
		return nil, "", err
	}

	build := &models.AppBuild{
		AppID:           appID,
		OrganizationID:  orgID,
		Status:          models.BuildPending,
		PlatformVersion: s.cfg.PlatformVersion,
	}
	if err := s.buildRepo.Create(ctx, build); err != nil {
		return nil, "", err
	}

	uploadURL, err := s.gateway.PresignUpload(ctx, artifact.KindSource, orgID.String(), app.Slug, build.ID.String())
	if err != nil {
		return nil, "", err
	}
	return build, uploadURL, nil
}

func (s *buildService) CompleteUpload(ctx context.Context, buildID, appID, orgID uuid.UUID) error {
	var build models.AppBuild
	if err := s.buildRepo.GetTriple(ctx, buildID, appID, orgID, &build); err != nil {
		return err
	}
	if build.Status != models.BuildPending {
		return appErr.New(appErr.CodeConflict, "build is no longer awaiting upload")
	}

	var app models.App
	if err := s.appRepo.GetOwned(ctx, appID, orgID, &app); err != nil {
		return err
	}
	return s.submit(ctx, &app, &build, true)
}

// submit flips pending -> building and hands the job to the orchestrator. The
// persisted record passes through building before any terminal state so a
// caller polling for progress always sees the intermediate step.
func (s *buildService) submit(ctx context.Context, app *models.App, build *models.AppBuild, fromBundle bool) error {
	var org models.Organization
	if err := s.orgRepo.GetByID(ctx, app.OrganizationID, &org); err != nil {
		return err
	}

	changed, err := s.buildRepo.Transition(ctx, build.ID, models.BuildPending, models.BuildBuilding)
	if err != nil {
		return err
	}
	if changed == 0 {
		return appErr.New(appErr.CodeConflict, "build already submitted")
	}

	opts := buildjob.Options{
		CallbackURL:     buildjob.CallbackURL(s.cfg.CallbackBaseURL, build.ID.String()),
		UseSourceBundle: fromBundle,
		UploadArtifact:  true,
	}
	job, err := buildjob.NewJob(s.cfg.JobSpec, app, &org, build.ID.String(), opts)
	if err != nil {
		return err
	}

	if err := s.submitter.Submit(ctx, job); err != nil {
		// The failed submission is a terminal outcome for this attempt; the
		// caller retries by requesting a fresh build.
		if _, terr := s.buildRepo.Transition(ctx, build.ID, models.BuildBuilding, models.BuildError); terr != nil {
			logger.L().Error("mark build error after failed submission", zap.Error(terr), zap.String("build_id", build.ID.String()))
		}
		return err
	}

	logger.L().Info("build submitted",
		zap.String("build_id", build.ID.String()),
		zap.String("app_id", app.ID.String()),
		zap.String("org_id", app.OrganizationID.String()),
		zap.Bool("from_bundle", fromBundle),
	)
	return nil
}

func (s *buildService) ApplyStatusCallback(ctx context.Context, buildID, appID, orgID uuid.UUID, status models.BuildStatus, logs string) (*models.AppBuild, error) {
	if !status.Valid() {
		return nil, appErr.New(appErr.CodeInvalid, "unknown build status")
	}

	var build models.AppBuild
	if err := s.buildRepo.GetTriple(ctx, buildID, appID, orgID, &build); err != nil {
		return nil, err
	}

	if build.Status.Terminal() {
		// History is immutable: fail loudly instead of overwriting.
		return nil, appErr.New(appErr.CodeConflict, "build already finished").
			WithMeta("status", string(build.Status))
	}

	// A repeated `building` report is a progress heartbeat; touch updated_at
	// so the staleness sweep keeps its hands off an active build.
	if status == models.BuildBuilding && build.Status == models.BuildBuilding {
		if _, err := s.buildRepo.Transition(ctx, buildID, models.BuildBuilding, models.BuildBuilding); err != nil {
			return nil, err
		}
		build.Status = models.BuildBuilding
		return &build, nil
	}

	if !build.Status.CanTransition(status) {
		return nil, appErr.New(appErr.CodeConflict, "illegal build status transition").
			WithMeta("from", string(build.Status)).
			WithMeta("to", string(status))
	}

	changed, err := s.buildRepo.Transition(ctx, buildID, build.Status, status)
	if err != nil {
		return nil, err
	}
	if changed == 0 {
		// A concurrent callback won the same edge. Last writer wins on
		// updated_at, but a double transition points at a duplicate job or a
		// retried callback, so it is logged rather than silently dropped.
		logger.L().Warn("double build transition detected",
			zap.String("build_id", buildID.String()),
			zap.String("attempted", string(status)),
		)
		return nil, appErr.New(appErr.CodeConflict, "build transitioned concurrently")
	}

	build.Status = status

	// The final report is auxiliary history. Losing it must not undo an
	// already committed transition.
	if status.Terminal() && logs != "" {
		report, merr := json.Marshal(map[string]string{
			"logs":        logs,
			"reported_at": time.Now().UTC().Format(time.RFC3339),
		})
		if merr == nil {
			if rerr := s.buildRepo.SetReport(ctx, buildID, datatypes.JSON(report)); rerr != nil {
				logger.L().Warn("storing build report failed",
					zap.String("build_id", buildID.String()),
					zap.Error(rerr),
				)
			} else {
				build.Report = datatypes.JSON(report)
			}
		}
	}

	logger.L().Info("build status updated",
		zap.String("build_id", buildID.String()),
		zap.String("status", string(status)),
	)
	return &build, nil
}

func (s *buildService) GetBuild(ctx context.Context, buildID, appID, orgID uuid.UUID) (*models.AppBuild, error) {
	var build models.AppBuild
	if err := s.buildRepo.GetTriple(ctx, buildID, appID, orgID, &build); err != nil {
		return nil, err
	}
	return &build, nil
}

func (s *buildService) ListBuilds(ctx context.Context, appID, orgID uuid.UUID) ([]models.AppBuild, error) {
	if _, err := s.GetApp(ctx, appID, orgID); err != nil {
		return nil, err
	}
	return s.buildRepo.ListByApp(ctx, appID, orgID)
}

// GetApp is a small ownership check shared by list/get paths.
func (s *buildService) GetApp(ctx context.Context, appID, orgID uuid.UUID) (*models.App, error) {
	var app models.App
	if err := s.appRepo.GetOwned(ctx, appID, orgID, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *buildService) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.buildRepo.ListStaleBuilding(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, b := range stale {
		changed, err := s.buildRepo.Transition(ctx, b.ID, models.BuildBuilding, models.BuildError)
		if err != nil {
			logger.L().Error("expire stale build failed", zap.Error(err), zap.String("build_id", b.ID.String()))
			continue
		}
		if changed > 0 {
			expired++
			logger.L().Warn("build expired after staleness threshold",
				zap.String("build_id", b.ID.String()),
				zap.String("app_id", b.AppID.String()),
				zap.Time("last_update", b.UpdatedAt),
			)
		}
	}
	return expired, nil
}
