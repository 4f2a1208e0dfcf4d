package types

type AppCreateRequest struct {
	Slug          string `json:"slug" validate:"required,max=63"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Public        bool   `json:"public"`
	GitRepoURL    string `json:"git_repo_url" validate:"required,url"`
	GitRepoBranch string `json:"git_repo_branch"`
	GitRepoPath   string `json:"git_repo_path"`
	BuildCommand  string `json:"build_command" validate:"required"`
	OutputPath    string `json:"output_path" validate:"required"`
	Entrypoint    string `json:"entrypoint"`
}

type AppUpdateRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Public        *bool   `json:"public"`
	GitRepoURL    *string `json:"git_repo_url" validate:"omitempty,url"`
	GitRepoBranch *string `json:"git_repo_branch"`
	GitRepoPath   *string `json:"git_repo_path"`
	BuildCommand  *string `json:"build_command"`
	OutputPath    *string `json:"output_path"`
	Entrypoint    *string `json:"entrypoint"`
}

type GitBuildRequest struct {
	AppID string `json:"app_id" validate:"required,uuid4"`
}

type UploadBuildRequest struct {
	AppID string `json:"app_id" validate:"required,uuid4"`
}

type BuildUploadedRequest struct {
	BuildID string `json:"build_id" validate:"required,uuid4"`
	AppID   string `json:"app_id" validate:"required,uuid4"`
}

// BuildStatusRequest is the callback body a build job posts. App and org ids
// are echoed back so the record can be revalidated before any write.
type BuildStatusRequest struct {
	AppID  string `json:"appId" validate:"required,uuid4"`
	OrgID  string `json:"orgId" validate:"required,uuid4"`
	Status string `json:"status" validate:"required"`
	Logs   string `json:"logs"`
}

type InstallRequest struct {
	AppID         string `json:"app_id" validate:"required,uuid4"`
	EnvironmentID string `json:"environment_id" validate:"required,uuid4"`
	BuildID       string `json:"build_id" validate:"required,uuid4"`
}

type InstallationDeleteRequest struct {
	AppID         string `json:"app_id" validate:"required,uuid4"`
	EnvironmentID string `json:"environment_id" validate:"required,uuid4"`
}

type EnvironmentCreateRequest struct {
	Name                  string `json:"name" validate:"required"`
	Slug                  string `json:"slug" validate:"required,max=63"`
	Production            bool   `json:"production"`
	RunnerCount           int    `json:"runner_count" validate:"omitempty,gte=1"`
	DatabaseInstanceCount int    `json:"database_instance_count" validate:"omitempty,gte=1"`
}

type EnvVarCreateRequest struct {
	EnvironmentID string `json:"environment_id" validate:"required,uuid4"`
	Name          string `json:"name" validate:"required,max=255"`
	Value         string `json:"value" validate:"required"`
}

type EnvVarDeleteRequest struct {
	ID string `json:"id" validate:"required,uuid4"`
}
