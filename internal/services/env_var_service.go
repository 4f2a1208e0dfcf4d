package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/secrets"
	appErr "github.com/voltade/platform-engine/pkg/errors"
	"github.com/voltade/platform-engine/pkg/logger"
)

// EnvVarService manages per-environment variables. Names and ownership live
// in Postgres; values only ever touch Vault.
type EnvVarService interface {
	Create(ctx context.Context, orgID, envID uuid.UUID, name, value string) (*models.EnvVar, error)
	// List returns the variable rows without values.
	List(ctx context.Context, orgID, envID uuid.UUID) ([]models.EnvVar, error)
	Delete(ctx context.Context, id, orgID uuid.UUID) error
	// FetchForRunner resolves the full name -> value map a runner injects into
	// tenant workloads. Callers must have already verified the requester is
	// scoped to exactly this (organization, environment).
	FetchForRunner(ctx context.Context, orgID, envID uuid.UUID) (map[string]string, error)
}

type envVarService struct {
	varRepo repository.EnvVarRepository
	envRepo repository.EnvironmentRepository
	store   secrets.Store
}

func NewEnvVarService(varRepo repository.EnvVarRepository, envRepo repository.EnvironmentRepository, store secrets.Store) EnvVarService {
	return &envVarService{varRepo: varRepo, envRepo: envRepo, store: store}
}

var _ EnvVarService = (*envVarService)(nil)

func (s *envVarService) Create(ctx context.Context, orgID, envID uuid.UUID, name, value string) (*models.EnvVar, error) {
	var env models.Environment
	if err := s.envRepo.GetOwned(ctx, envID, orgID, &env); err != nil {
		return nil, err
	}

	row := &models.EnvVar{
		OrganizationID: orgID,
		EnvironmentID:  envID,
		Name:           name,
	}
	if err := s.varRepo.Create(ctx, row); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, row.ID.String(), value); err != nil {
		// The row without a value is useless; undo it so the caller can retry
		// the whole create.
		if delErr := s.varRepo.DeleteOwned(ctx, row.ID, orgID); delErr != nil {
			logger.L().Error("orphaned env var row after failed secret write",
				zap.Error(delErr), zap.String("env_var_id", row.ID.String()))
		}
		return nil, err
	}

	logger.L().Info("env var created",
		zap.String("env_var_id", row.ID.String()),
		zap.String("env_id", envID.String()),
		zap.String("name", name),
	)
	return row, nil
}

func (s *envVarService) List(ctx context.Context, orgID, envID uuid.UUID) ([]models.EnvVar, error) {
	var env models.Environment
	if err := s.envRepo.GetOwned(ctx, envID, orgID, &env); err != nil {
		return nil, err
	}
	return s.varRepo.ListByScope(ctx, orgID, envID)
}

func (s *envVarService) Delete(ctx context.Context, id, orgID uuid.UUID) error {
	if err := s.varRepo.DeleteOwned(ctx, id, orgID); err != nil {
		return err
	}
	// The row is the source of truth; a leftover secret for a deleted row is
	// unreachable, so a failed secret delete only warrants a warning.
	if err := s.store.Delete(ctx, id.String()); err != nil {
		logger.L().Warn("delete secret for removed env var failed",
			zap.Error(err), zap.String("env_var_id", id.String()))
	}
	return nil
}

func (s *envVarService) FetchForRunner(ctx context.Context, orgID, envID uuid.UUID) (map[string]string, error) {
	rows, err := s.varRepo.ListByScope(ctx, orgID, envID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID.String())
	}
	values, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "resolve env var values failed")
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = values[r.ID.String()]
	}
	return out, nil
}
