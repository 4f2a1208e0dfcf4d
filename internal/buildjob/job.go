package buildjob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/voltade/platform-engine/internal/artifact"
	"github.com/voltade/platform-engine/internal/models"
)

const (
	labelAppID     = "platform.voltade.dev/app-id"
	labelBuildID   = "platform.voltade.dev/build-id"
	labelComponent = "platform.voltade.dev/component"

	componentBuildJob = "build-job"

	// Secret objects managed by the platform chart; the orchestrator only
	// references them, never their contents.
	sharedSecretName = "shared-secrets"
	runnerTokenKey   = "runnerSecretToken"
	s3SecretName     = "s3-secrets"
	s3AccessKeyKey   = "accessKeyId"
	s3SecretKeyKey   = "secretAccessKey"
)

// Options tunes one job submission.
type Options struct {
	// Resources overrides the default CPU/memory limits when non-empty.
	CPULimit    string
	MemoryLimit string
	// CallbackURL receives the job's status reports.
	CallbackURL string
	// UseSourceBundle acquires source from the uploaded S3 bundle instead of
	// a git clone.
	UseSourceBundle bool
	// UploadArtifact packages the output directory to the artifact key after
	// a successful build.
	UploadArtifact bool
}

// Spec is the environment-independent input for job synthesis.
type Spec struct {
	Namespace  string
	Image      string
	TTL        time.Duration
	Bucket     string
	S3Region   string
	S3Endpoint string
}

// JobName derives the deterministic job name for one (app, build) pair. The
// orchestrator rejects a second job with the same name, which is what makes
// duplicate submission naturally idempotent.
func JobName(appID, buildID string) string {
	sum := sha256.Sum256([]byte(appID + ":" + buildID))
	return "build-" + hex.EncodeToString(sum[:])[:16]
}

// NewJob synthesizes the single-shot build job for app/build. The job never
// restarts (a failed build must not silently retry) and is garbage-collected
// by the orchestrator after the configured TTL.
func NewJob(spec Spec, app *models.App, org *models.Organization, buildID string, opts Options) (*batchv1.Job, error) {
	params := ScriptParams{
		AppID:         app.ID.String(),
		OrgID:         app.OrganizationID.String(),
		BuildID:       buildID,
		GitRepoURL:    app.GitRepoURL,
		GitRepoBranch: app.GitRepoBranch,
		GitRepoPath:   app.GitRepoPath,
		BuildCommand:  app.BuildCommand,
		OutputPath:    app.OutputPath,
		CallbackURL:   opts.CallbackURL,
	}
	if opts.UseSourceBundle {
		params.SourceKey = artifact.SourceKey(app.OrganizationID.String(), app.Slug, buildID)
	}
	if opts.UploadArtifact {
		params.ArtifactKey = artifact.ArtifactKey(app.OrganizationID.String(), app.Slug, buildID)
	}

	script, err := RenderScript(params)
	if err != nil {
		return nil, err
	}

	cpu := opts.CPULimit
	if cpu == "" {
		cpu = "2"
	}
	memory := opts.MemoryLimit
	if memory == "" {
		memory = "4Gi"
	}

	labels := map[string]string{
		labelAppID:     app.ID.String(),
		labelBuildID:   buildID,
		labelComponent: componentBuildJob,
	}

	env := []corev1.EnvVar{
		{Name: "APP_ID", Value: app.ID.String()},
		{Name: "BUILD_ID", Value: buildID},
		{Name: "NODE_ENV", Value: "production"},
		{
			Name: "RUNNER_SECRET_TOKEN",
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: sharedSecretName},
					Key:                  runnerTokenKey,
				},
			},
		},
	}
	if opts.UseSourceBundle || opts.UploadArtifact {
		env = append(env,
			corev1.EnvVar{
				Name: "AWS_ACCESS_KEY_ID",
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: s3SecretName},
						Key:                  s3AccessKeyKey,
					},
				},
			},
			corev1.EnvVar{
				Name: "AWS_SECRET_ACCESS_KEY",
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: s3SecretName},
						Key:                  s3SecretKeyKey,
					},
				},
			},
			corev1.EnvVar{Name: "AWS_DEFAULT_REGION", Value: spec.S3Region},
			corev1.EnvVar{Name: "S3_BUCKET", Value: spec.Bucket},
			corev1.EnvVar{Name: "AWS_ENDPOINT_URL", Value: spec.S3Endpoint},
		)
	}

	ttlSeconds := int32(spec.TTL.Seconds())
	backoffLimit := int32(0)

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      JobName(app.ID.String(), buildID),
			Namespace: spec.Namespace,
			Labels:    labels,
			Annotations: map[string]string{
				"platform.voltade.dev/org-slug": org.Slug,
				"platform.voltade.dev/app-slug": app.Slug,
			},
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: &ttlSeconds,
			BackoffLimit:            &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:       "build",
							Image:      spec.Image,
							WorkingDir: "/workspace",
							Command:    []string{"/bin/sh"},
							Args:       []string{"-c", script},
							Env:        env,
							Resources: corev1.ResourceRequirements{
								Limits: corev1.ResourceList{
									corev1.ResourceCPU:    resource.MustParse(cpu),
									corev1.ResourceMemory: resource.MustParse(memory),
								},
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    resource.MustParse("500m"),
									corev1.ResourceMemory: resource.MustParse("1Gi"),
								},
							},
						},
					},
				},
			},
		},
	}

	return job, nil
}

// CallbackURL derives the status-callback URL the job reports into.
func CallbackURL(base, buildID string) string {
	return fmt.Sprintf("%s/api/v1/builds/%s/status", base, buildID)
}
