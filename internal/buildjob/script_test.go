package buildjob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func gitScriptParams() ScriptParams {
	return ScriptParams{
		AppID:         "app-1",
		OrgID:         "org-1",
		BuildID:       "build-1",
		GitRepoURL:    "https://github.com/acme/crm.git",
		GitRepoBranch: "release",
		GitRepoPath:   "apps/crm",
		BuildCommand:  "bun run build",
		OutputPath:    "dist",
		CallbackURL:   "https://engine.voltade.dev/api/v1/builds/build-1/status",
	}
}

func TestRenderScriptGitVariant(t *testing.T) {
	script, err := RenderScript(gitScriptParams())
	require.NoError(t, err)

	require.Contains(t, script, `git clone "https://github.com/acme/crm.git" repo`)
	require.Contains(t, script, `git checkout "release"`)
	require.Contains(t, script, `cd "apps/crm"`)
	require.Contains(t, script, `eval "bun run build"`)
	require.NotContains(t, script, "aws s3 cp")
}

func TestRenderScriptBundleVariant(t *testing.T) {
	p := gitScriptParams()
	p.SourceKey = "source/org-1/crm/build-1.zip"
	p.ArtifactKey = "builds/org-1/crm/build-1/artifact.tar.gz"

	script, err := RenderScript(p)
	require.NoError(t, err)

	require.Contains(t, script, `aws s3 cp "s3://$S3_BUCKET/source/org-1/crm/build-1.zip"`)
	require.Contains(t, script, "unzip -q /workspace/source.zip")
	require.NotContains(t, script, "git clone")
	require.Contains(t, script, `tar -czf "$ARTIFACT_FILE" -C "dist" .`)
	require.Contains(t, script, `"s3://$S3_BUCKET/builds/org-1/crm/build-1/artifact.tar.gz"`)
}

func TestRenderScriptStepsAreObservable(t *testing.T) {
	script, err := RenderScript(gitScriptParams())
	require.NoError(t, err)

	for _, marker := range []string{
		"=== Starting build process ===",
		"=== Installing dependencies ===",
		"=== Cloning repository ===",
		"=== Installing project dependencies ===",
		"=== Running build command: bun run build ===",
		"=== Build process completed ===",
	} {
		require.Contains(t, script, marker)
	}
}

func TestRenderScriptFailureReporting(t *testing.T) {
	script, err := RenderScript(gitScriptParams())
	require.NoError(t, err)

	require.Contains(t, script, "handle_error()")
	require.Contains(t, script, `trap 'handle_error "Build script failed unexpectedly"' ERR`)
	require.Contains(t, script, `report_status "error" "$1"`)
	// The callback authenticates with the env-injected secret, never an
	// inlined literal.
	require.Contains(t, script, `Authorization: Bearer $RUNNER_SECRET_TOKEN`)
	require.Contains(t, script, `curl --globoff -sS -X PATCH "https://engine.voltade.dev/api/v1/builds/build-1/status"`)
}

func TestRenderScriptWithoutCallback(t *testing.T) {
	p := gitScriptParams()
	p.CallbackURL = ""

	script, err := RenderScript(p)
	require.NoError(t, err)

	// curl stays in the apk install line; only the status report must go.
	require.NotContains(t, script, "curl --globoff")
	require.NotContains(t, script, "Reporting status")
	require.NotContains(t, script, "Authorization: Bearer")
	require.Contains(t, script, `echo "Status: $status - $message"`)
}
