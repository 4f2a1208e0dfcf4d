package buildjob

import (
	"strings"
	"text/template"

	appErr "github.com/voltade/platform-engine/pkg/errors"
)

// ScriptParams feeds the staged build script. Credentials never appear here:
// the script reads RUNNER_SECRET_TOKEN and the S3 credentials from its
// environment, which the job spec populates from platform-managed secrets.
type ScriptParams struct {
	AppID         string
	OrgID         string
	BuildID       string
	GitRepoURL    string
	GitRepoBranch string
	GitRepoPath   string
	BuildCommand  string
	OutputPath    string

	// CallbackURL, when set, receives PATCH status reports from the job.
	CallbackURL string
	// SourceKey, when set, switches source acquisition from a git clone to a
	// download-and-unpack of a previously uploaded bundle.
	SourceKey string
	// ArtifactKey, when set, enables packaging and upload of the output
	// directory after a successful build.
	ArtifactKey string
}

// buildScript stages the job as individually observable steps. Any failing
// step short-circuits through handle_error, which reports `error` over the
// callback before the job exits.
var buildScript = template.Must(template.New("build").Parse(`#!/bin/sh

report_status() {
  status="$1"
  message="$2"
{{- if .CallbackURL}}
  echo "Reporting status: $status - $message"
  payload=$(jq -n \
    --arg appId "{{.AppID}}" \
    --arg orgId "{{.OrgID}}" \
    --arg status "$status" \
    --arg logs "$message" \
    '{appId:$appId, orgId:$orgId, status:$status, logs:$logs}')
  curl --globoff -sS -X PATCH "{{.CallbackURL}}" \
    -H "Content-Type: application/json" \
    -H "Authorization: Bearer $RUNNER_SECRET_TOKEN" \
    -d "$payload" || echo "Failed to report status"
{{- else}}
  echo "Status: $status - $message"
{{- end}}
}

handle_error() {
  echo "ERROR: $1"
  report_status "error" "$1"
  exit 1
}

trap 'handle_error "Build script failed unexpectedly"' ERR

echo "=== Starting build process ==="
echo "App ID: {{.AppID}}"
echo "Build ID: {{.BuildID}}"
{{- if .SourceKey}}
echo "Source: s3://$S3_BUCKET/{{.SourceKey}}"
{{- else}}
echo "Repository: {{.GitRepoURL}}"
echo "Branch: {{.GitRepoBranch}}"
{{- end}}
echo "Path: {{.GitRepoPath}}"
echo "Build Command: {{.BuildCommand}}"

report_status "building" "Starting build process"

echo "=== Installing dependencies ==="
apk add --no-cache {{if .SourceKey}}aws-cli unzip curl jq{{else}}git openssh-client curl jq{{end}} zip || handle_error "Failed to install system dependencies"

mkdir -p /workspace
cd /workspace

{{- if .SourceKey}}

echo "=== Downloading source from S3 ==="
if [ -z "$S3_BUCKET" ]; then
  handle_error "S3_BUCKET env var not set"
fi
aws s3 cp "s3://$S3_BUCKET/{{.SourceKey}}" /workspace/source.zip || handle_error "Failed to download source zip from S3"
mkdir -p /workspace/src
unzip -q /workspace/source.zip -d /workspace/src || handle_error "Failed to unzip source archive"
cd /workspace/src
{{- else}}

echo "=== Cloning repository ==="
git clone "{{.GitRepoURL}}" repo || handle_error "Failed to clone repository"
cd repo

echo "=== Switching to branch: {{.GitRepoBranch}} ==="
git checkout "{{.GitRepoBranch}}" || handle_error "Failed to checkout branch {{.GitRepoBranch}}"
{{- end}}

{{- if .GitRepoPath}}

echo "=== Navigating to path: {{.GitRepoPath}} ==="
cd "{{.GitRepoPath}}" || handle_error "Failed to navigate to path {{.GitRepoPath}}"
{{- end}}

report_status "building" "Installing project dependencies"

echo "=== Installing project dependencies ==="
if [ -f "package.json" ]; then
  bun install || handle_error "Failed to install dependencies"
else
  echo "No package.json found, skipping dependency installation"
fi

report_status "building" "Running build command"

echo "=== Running build command: {{.BuildCommand}} ==="
eval "{{.BuildCommand}}" || handle_error "Build command failed"

echo "=== Build completed successfully ==="

{{- if .ArtifactKey}}

report_status "building" "Uploading build artifacts"

echo "=== Creating artifact tar.gz from {{.OutputPath}} ==="
if [ -z "$AWS_ACCESS_KEY_ID" ] || [ -z "$AWS_SECRET_ACCESS_KEY" ] || [ -z "$S3_BUCKET" ]; then
  handle_error "Missing required S3 environment variables"
fi
if [ ! -d "{{.OutputPath}}" ]; then
  handle_error "Output path {{.OutputPath}} not found"
fi
ARTIFACT_FILE="/tmp/build-{{.BuildID}}.tar.gz"
tar -czf "$ARTIFACT_FILE" -C "{{.OutputPath}}" .

echo "=== Uploading to S3 ==="
aws s3 cp "$ARTIFACT_FILE" "s3://$S3_BUCKET/{{.ArtifactKey}}" || handle_error "Artifact upload failed"
rm -f "$ARTIFACT_FILE"

report_status "ready" "Build completed successfully with artifacts uploaded"
{{- else}}

report_status "ready" "Build completed successfully"
{{- end}}

echo "=== Build process completed ==="
`))

// RenderScript produces the shell entrypoint for one build job.
func RenderScript(p ScriptParams) (string, error) {
	var sb strings.Builder
	if err := buildScript.Execute(&sb, p); err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "render build script failed")
	}
	return sb.String(), nil
}
