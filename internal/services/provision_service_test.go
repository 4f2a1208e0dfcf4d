package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/runner"
	"github.com/voltade/platform-engine/internal/token"
)

func TestProvisionParameters(t *testing.T) {
	db := openTestDB(t)
	org, _ := seedAppTree(t, db)

	staging := &models.Environment{
		OrganizationID: org.ID, Name: "Staging", Slug: "staging",
		RunnerCount: 1, DatabaseInstanceCount: 1,
	}
	require.NoError(t, db.Create(staging).Error)
	prod := &models.Environment{
		OrganizationID: org.ID, Name: "Production", Slug: "prod", Production: true,
		RunnerCount: 3, DatabaseInstanceCount: 2,
	}
	require.NoError(t, db.Create(prod).Error)

	issuer, err := token.LoadOrGenerate(context.Background(), repository.NewSigningKeyRepository(db))
	require.NoError(t, err)

	svc := NewProvisionService(
		ProvisionConfig{
			ChartVersion: "0.1.5",
			Routing:      runner.Routing{BaseDomain: "app.voltade.dev"},
		},
		repository.NewEnvironmentRepository(db),
		repository.NewOrganizationRepository(db),
		issuer,
	)

	params, err := svc.Parameters(context.Background())
	require.NoError(t, err)
	require.Len(t, params, 2)

	byEnv := map[string]EnvironmentParams{}
	for _, p := range params {
		byEnv[p.EnvironmentSlug] = p
	}

	p := byEnv["prod"]
	require.Equal(t, org.ID.String(), p.OrgID)
	require.Equal(t, "acme", p.OrgSlug)
	require.Equal(t, prod.ID.String(), p.EnvironmentID)
	require.True(t, p.IsProduction)
	require.Equal(t, "0.1.5", p.EnvironmentChartVersion)
	require.Equal(t, 3, p.RunnerReplicas)
	require.Equal(t, 2, p.DatabaseReplicas)
	require.False(t, byEnv["staging"].IsProduction)

	// Keys verify against the platform key set with the right scopes.
	anon, err := issuer.Verify(context.Background(), p.AnonKey)
	require.NoError(t, err)
	require.Equal(t, token.RoleAnon, anon.Role)
	require.Equal(t, []string{"acme"}, []string(anon.Audience))

	service, err := issuer.Verify(context.Background(), p.ServiceKey)
	require.NoError(t, err)
	require.Equal(t, token.RoleServiceRole, service.Role)

	runnerClaims, err := issuer.Verify(context.Background(), p.RunnerKey)
	require.NoError(t, err)
	require.Equal(t, token.RoleRunner, runnerClaims.Role)
	require.Equal(t, prod.ID.String(), runnerClaims.EnvID)
	require.Equal(t, org.ID.String(), runnerClaims.OrgID)

	require.Equal(t, "http://acme-prod.app.voltade.dev", p.Hostnames["runner"])
}

func TestProvisionParametersEmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	issuer, err := token.LoadOrGenerate(context.Background(), repository.NewSigningKeyRepository(db))
	require.NoError(t, err)

	svc := NewProvisionService(
		ProvisionConfig{ChartVersion: "0.1.5", Routing: runner.Routing{BaseDomain: "app.voltade.dev"}},
		repository.NewEnvironmentRepository(db),
		repository.NewOrganizationRepository(db),
		issuer,
	)

	params, err := svc.Parameters(context.Background())
	require.NoError(t, err)
	require.Empty(t, params)
}
