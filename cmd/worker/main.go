package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/queue/tasks"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/services"
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	buildRepo := repository.NewBuildRepository(db)
	appRepo := repository.NewAppRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)

	// The sweep only flips stale rows; it never submits jobs or presigns, so
	// the orchestration dependencies stay nil here.
	buildSvc := services.NewBuildService(
		services.BuildConfig{PlatformVersion: cfg.PlatformVersion},
		buildRepo, appRepo, orgRepo, nil, nil,
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
	})

	mux := asynq.NewServeMux()
	handler := tasks.NewReconcileTaskHandler(buildSvc, cfg.BuildStaleAfter)
	mux.HandleFunc(tasks.TypeBuildReconcile, handler.HandleBuildReconcile)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(
		fmt.Sprintf("@every %s", cfg.ReconcileInterval),
		tasks.NewBuildReconcileTask(),
	); err != nil {
		log.Fatal("register reconcile schedule failed", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.L().Info("asynq worker starting",
			zap.Int("concurrency", cfg.AsynqConcurrency),
			zap.Duration("reconcile_interval", cfg.ReconcileInterval),
		)
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.L().Error("worker stopped with error", zap.Error(err))
	}

	scheduler.Shutdown()
	srv.Shutdown()
}
