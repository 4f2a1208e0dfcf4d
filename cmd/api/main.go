package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/api"
	"github.com/voltade/platform-engine/internal/api/handlers"
	"github.com/voltade/platform-engine/internal/artifact"
	"github.com/voltade/platform-engine/internal/buildjob"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/runner"
	"github.com/voltade/platform-engine/internal/secrets"
	"github.com/voltade/platform-engine/internal/services"
	"github.com/voltade/platform-engine/internal/token"
	"github.com/voltade/platform-engine/pkg/config"
	"github.com/voltade/platform-engine/pkg/database"
	"github.com/voltade/platform-engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting platform engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	orgRepo := repository.NewOrganizationRepository(db)
	envRepo := repository.NewEnvironmentRepository(db)
	appRepo := repository.NewAppRepository(db)
	buildRepo := repository.NewBuildRepository(db)
	installRepo := repository.NewInstallationRepository(db)
	envVarRepo := repository.NewEnvVarRepository(db)
	keyRepo := repository.NewSigningKeyRepository(db)

	// The signing keypair must exist before any request is served; every
	// token the platform ever verifies traces back to it.
	issuer, err := token.LoadOrGenerate(ctx, keyRepo)
	if err != nil {
		log.Fatal("load signing key failed", zap.Error(err))
	}

	gateway, err := artifact.New(artifact.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		log.Fatal("object store client failed", zap.Error(err))
	}

	clientset, err := buildjob.NewClientset(cfg.Production(), cfg.Kubeconfig)
	if err != nil {
		log.Fatal("kubernetes client failed", zap.Error(err))
	}
	submitter := buildjob.NewSubmitter(clientset, cfg.BuildSubmitTimeout)

	secretStore, err := secrets.NewVaultStore(cfg.VaultAddr, cfg.VaultToken, cfg.VaultMount)
	if err != nil {
		log.Fatal("vault client failed", zap.Error(err))
	}

	routing := runner.Routing{
		Production: cfg.Production(),
		BaseDomain: cfg.BaseDomain,
		SvcDomain:  cfg.ClusterSvcDomain,
	}
	runnerClient := runner.NewClient(routing, 10*time.Second)

	buildSvc := services.NewBuildService(
		services.BuildConfig{
			JobSpec: buildjob.Spec{
				Namespace:  cfg.BuildNamespace,
				Image:      cfg.BuildImage,
				TTL:        cfg.BuildJobTTL,
				Bucket:     cfg.S3Bucket,
				S3Region:   cfg.S3Region,
				S3Endpoint: cfg.S3Endpoint,
			},
			CallbackBaseURL: cfg.CallbackBaseURL,
			PlatformVersion: cfg.PlatformVersion,
		},
		buildRepo, appRepo, orgRepo, gateway, submitter,
	)
	installSvc := services.NewInstallationService(
		installRepo, appRepo, envRepo, orgRepo, buildRepo,
		issuer, runnerClient, cfg.TokenTTL,
	)
	envVarSvc := services.NewEnvVarService(envVarRepo, envRepo, secretStore)
	provisionSvc := services.NewProvisionService(
		services.ProvisionConfig{ChartVersion: cfg.EnvironmentChartVer, Routing: routing},
		envRepo, orgRepo, issuer,
	)

	router := api.NewRouter(api.Dependencies{
		Issuer:            issuer,
		OrgRepo:           orgRepo,
		RunnerSecretToken: cfg.RunnerSecretToken,
		GeneratorToken:    cfg.GeneratorToken,
		GeneratorHostname: cfg.GeneratorHostname,
		Production:        cfg.Production(),

		HealthHandler:        handlers.NewHealthHandler(db),
		AppsHandler:          handlers.NewAppsHandler(appRepo),
		BuildsHandler:        handlers.NewBuildsHandler(buildSvc),
		InstallationsHandler: handlers.NewInstallationsHandler(installSvc),
		EnvironmentsHandler:  handlers.NewEnvironmentsHandler(envRepo),
		EnvVarsHandler:       handlers.NewEnvVarsHandler(envVarSvc),
		ProvisionHandler:     handlers.NewProvisionHandler(provisionSvc, issuer),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
