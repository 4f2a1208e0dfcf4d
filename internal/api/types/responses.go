package types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// UploadBuildResponse pairs a freshly created build with the presigned URL
// the client PUTs its source bundle to.
type UploadBuildResponse struct {
	Build     any    `json:"build"`
	UploadURL string `json:"upload_url"`
}

// GeneratorResponse is the envelope the provisioning generator plugin
// protocol expects.
type GeneratorResponse struct {
	Output GeneratorOutput `json:"output"`
}

type GeneratorOutput struct {
	Parameters any `json:"parameters"`
}
