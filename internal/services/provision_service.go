package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/runner"
	"github.com/voltade/platform-engine/internal/token"
	"github.com/voltade/platform-engine/pkg/logger"
)

// Provisioned environment keys are baked into long-lived infrastructure
// (Helm values consumed by the cluster generator), so they get a ten year
// lifetime instead of the interactive token TTL.
const provisionKeyTTL = 10 * 365 * 24 * time.Hour

// EnvironmentParams is one generator output entry: everything the cluster
// tooling needs to stand up or reconcile a tenant environment.
type EnvironmentParams struct {
	OrgID                   string            `json:"org_id"`
	OrgSlug                 string            `json:"org_slug"`
	EnvironmentID           string            `json:"environment_id"`
	EnvironmentSlug         string            `json:"environment_slug"`
	IsProduction            bool              `json:"is_production"`
	EnvironmentChartVersion string            `json:"environment_chart_version"`
	AnonKey                 string            `json:"anon_key"`
	ServiceKey              string            `json:"service_key"`
	RunnerKey               string            `json:"runner_key"`
	Hostnames               map[string]string `json:"hostnames"`
	RunnerReplicas          int               `json:"runner_replicas"`
	DatabaseReplicas        int               `json:"database_replicas"`
}

// ProvisionService produces the parameter set the environment generator
// plugin consumes. It is strictly read-only against the database.
type ProvisionService interface {
	Parameters(ctx context.Context) ([]EnvironmentParams, error)
}

type ProvisionConfig struct {
	ChartVersion string
	Routing      runner.Routing
}

type provisionService struct {
	cfg     ProvisionConfig
	envRepo repository.EnvironmentRepository
	orgRepo repository.OrganizationRepository
	issuer  *token.Issuer
}

func NewProvisionService(
	cfg ProvisionConfig,
	envRepo repository.EnvironmentRepository,
	orgRepo repository.OrganizationRepository,
	issuer *token.Issuer,
) ProvisionService {
	return &provisionService{cfg: cfg, envRepo: envRepo, orgRepo: orgRepo, issuer: issuer}
}

var _ ProvisionService = (*provisionService)(nil)

func (s *provisionService) Parameters(ctx context.Context) ([]EnvironmentParams, error) {
	envs, err := s.envRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	orgIDs := make([]uuid.UUID, 0, len(envs))
	seen := make(map[uuid.UUID]bool, len(envs))
	for _, e := range envs {
		if !seen[e.OrganizationID] {
			seen[e.OrganizationID] = true
			orgIDs = append(orgIDs, e.OrganizationID)
		}
	}
	orgs, err := s.orgRepo.MapByID(ctx, orgIDs)
	if err != nil {
		return nil, err
	}

	out := make([]EnvironmentParams, 0, len(envs))
	for _, env := range envs {
		org, ok := orgs[env.OrganizationID]
		if !ok {
			// An environment without its organization is a data integrity
			// problem; skip it rather than failing the whole generator run.
			logger.L().Error("environment references missing organization",
				zap.String("env_id", env.ID.String()),
				zap.String("org_id", env.OrganizationID.String()),
			)
			continue
		}

		params, err := s.buildParams(org, env)
		if err != nil {
			return nil, err
		}
		out = append(out, *params)
	}
	return out, nil
}

func (s *provisionService) buildParams(org models.Organization, env models.Environment) (*EnvironmentParams, error) {
	anonKey, err := s.issuer.Sign(token.KeyClaims(token.RoleAnon, org.Slug, provisionKeyTTL))
	if err != nil {
		return nil, err
	}
	serviceKey, err := s.issuer.Sign(token.KeyClaims(token.RoleServiceRole, org.Slug, provisionKeyTTL))
	if err != nil {
		return nil, err
	}
	runnerKey, err := s.issuer.Sign(token.RunnerClaims(
		org.ID.String(), org.Slug, env.ID.String(), env.Slug, provisionKeyTTL,
	))
	if err != nil {
		return nil, err
	}

	base := s.cfg.Routing.BaseURL(org.Slug, env.Slug)
	return &EnvironmentParams{
		OrgID:                   org.ID.String(),
		OrgSlug:                 org.Slug,
		EnvironmentID:           env.ID.String(),
		EnvironmentSlug:         env.Slug,
		IsProduction:            env.Production,
		EnvironmentChartVersion: s.cfg.ChartVersion,
		AnonKey:                 anonKey,
		ServiceKey:              serviceKey,
		RunnerKey:               runnerKey,
		Hostnames: map[string]string{
			"runner":   base,
			"database": fmt.Sprintf("%s-%s-db", org.Slug, env.Slug),
		},
		RunnerReplicas:   env.RunnerCount,
		DatabaseReplicas: env.DatabaseInstanceCount,
	}, nil
}
