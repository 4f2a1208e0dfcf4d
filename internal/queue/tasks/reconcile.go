package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/services"
	"github.com/voltade/platform-engine/pkg/logger"
)

// TypeBuildReconcile is the periodic sweep that expires builds stuck in
// building. Jobs report progress heartbeats; a build whose updated_at is
// older than the staleness threshold has a dead or wedged job behind it.
const TypeBuildReconcile = "build:reconcile"

func NewBuildReconcileTask() *asynq.Task {
	return asynq.NewTask(TypeBuildReconcile, nil)
}

type ReconcileTaskHandler struct {
	builds     services.BuildService
	staleAfter time.Duration
}

func NewReconcileTaskHandler(builds services.BuildService, staleAfter time.Duration) *ReconcileTaskHandler {
	return &ReconcileTaskHandler{builds: builds, staleAfter: staleAfter}
}

func (h *ReconcileTaskHandler) HandleBuildReconcile(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-h.staleAfter)
	expired, err := h.builds.ExpireStale(ctx, cutoff)
	if err != nil {
		logger.L().Error("build reconcile sweep failed", zap.Error(err))
		return err
	}
	if expired > 0 {
		logger.L().Info("build reconcile sweep finished",
			zap.Int("expired", expired),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
