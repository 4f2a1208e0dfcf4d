package buildjob

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/voltade/platform-engine/internal/models"
)

func testApp() (*models.App, *models.Organization) {
	org := &models.Organization{ID: uuid.New(), Name: "Acme", Slug: "acme"}
	app := &models.App{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Slug:           "crm",
		GitRepoURL:     "https://github.com/acme/crm.git",
		GitRepoBranch:  "main",
		BuildCommand:   "bun run build",
		OutputPath:     "dist",
	}
	return app, org
}

func testSpec() Spec {
	return Spec{
		Namespace:  "platform",
		Image:      "oven/bun:1.2.9-alpine",
		TTL:        24 * time.Hour,
		Bucket:     "platform",
		S3Region:   "ap-southeast-1",
		S3Endpoint: "http://minio:9000",
	}
}

func TestJobNameIsDeterministic(t *testing.T) {
	a := JobName("app-1", "build-1")
	b := JobName("app-1", "build-1")
	require.Equal(t, a, b)
	require.NotEqual(t, a, JobName("app-1", "build-2"))
	require.NotEqual(t, a, JobName("app-2", "build-1"))

	// Fits the orchestrator's 63 character object name limit.
	require.LessOrEqual(t, len(a), 63)
	require.True(t, len(a) > len("build-"))
}

func TestNewJobSingleShotSemantics(t *testing.T) {
	app, org := testApp()
	buildID := uuid.NewString()

	job, err := NewJob(testSpec(), app, org, buildID, Options{UploadArtifact: true})
	require.NoError(t, err)

	require.Equal(t, JobName(app.ID.String(), buildID), job.Name)
	require.Equal(t, "platform", job.Namespace)
	require.Equal(t, corev1.RestartPolicyNever, job.Spec.Template.Spec.RestartPolicy)
	require.NotNil(t, job.Spec.BackoffLimit)
	require.Equal(t, int32(0), *job.Spec.BackoffLimit)
	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	require.Equal(t, int32(86400), *job.Spec.TTLSecondsAfterFinished)
}

func TestNewJobLabelsAndAnnotations(t *testing.T) {
	app, org := testApp()
	buildID := uuid.NewString()

	job, err := NewJob(testSpec(), app, org, buildID, Options{})
	require.NoError(t, err)

	require.Equal(t, app.ID.String(), job.Labels["platform.voltade.dev/app-id"])
	require.Equal(t, buildID, job.Labels["platform.voltade.dev/build-id"])
	require.Equal(t, "build-job", job.Labels["platform.voltade.dev/component"])
	require.Equal(t, "acme", job.Annotations["platform.voltade.dev/org-slug"])
	require.Equal(t, "crm", job.Annotations["platform.voltade.dev/app-slug"])
	require.Equal(t, job.Labels, job.Spec.Template.Labels)
}

func TestNewJobCredentialsComeFromSecrets(t *testing.T) {
	app, org := testApp()

	job, err := NewJob(testSpec(), app, org, uuid.NewString(), Options{
		UseSourceBundle: true,
		UploadArtifact:  true,
	})
	require.NoError(t, err)

	container := job.Spec.Template.Spec.Containers[0]
	byName := map[string]corev1.EnvVar{}
	for _, e := range container.Env {
		byName[e.Name] = e
	}

	for name, secret := range map[string]string{
		"RUNNER_SECRET_TOKEN":   "shared-secrets",
		"AWS_ACCESS_KEY_ID":     "s3-secrets",
		"AWS_SECRET_ACCESS_KEY": "s3-secrets",
	} {
		e, ok := byName[name]
		require.True(t, ok, "missing env var %s", name)
		require.Empty(t, e.Value, "%s must not carry a literal value", name)
		require.NotNil(t, e.ValueFrom, "%s must come from a secret", name)
		require.Equal(t, secret, e.ValueFrom.SecretKeyRef.Name)
	}

	require.Equal(t, "platform", byName["S3_BUCKET"].Value)
	require.Equal(t, "http://minio:9000", byName["AWS_ENDPOINT_URL"].Value)
}

func TestNewJobResourceDefaultsAndOverrides(t *testing.T) {
	app, org := testApp()

	job, err := NewJob(testSpec(), app, org, uuid.NewString(), Options{})
	require.NoError(t, err)
	limits := job.Spec.Template.Spec.Containers[0].Resources.Limits
	require.Equal(t, "2", limits.Cpu().String())
	require.Equal(t, "4Gi", limits.Memory().String())

	job, err = NewJob(testSpec(), app, org, uuid.NewString(), Options{CPULimit: "1", MemoryLimit: "2Gi"})
	require.NoError(t, err)
	limits = job.Spec.Template.Spec.Containers[0].Resources.Limits
	require.Equal(t, "1", limits.Cpu().String())
	require.Equal(t, "2Gi", limits.Memory().String())
}

func TestCallbackURL(t *testing.T) {
	require.Equal(t,
		"https://engine.voltade.dev/api/v1/builds/b-1/status",
		CallbackURL("https://engine.voltade.dev", "b-1"),
	)
}
