package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/services"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type BuildsHandler struct {
	builds services.BuildService
}

func NewBuildsHandler(builds services.BuildService) *BuildsHandler {
	return &BuildsHandler{builds: builds}
}

// RequestGit starts a clone-based build for an app.
func (h *BuildsHandler) RequestGit(w http.ResponseWriter, r *http.Request) {
	var req types.GitBuildRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appID, _ := uuid.Parse(req.AppID)
	org, _ := middleware.GetOrg(r.Context())

	build, err := h.builds.RequestGitBuild(r.Context(), appID, org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: build})
}

// RequestUploadURL creates a pending build and hands back a presigned PUT URL
// for its source bundle.
func (h *BuildsHandler) RequestUploadURL(w http.ResponseWriter, r *http.Request) {
	var req types.UploadBuildRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appID, _ := uuid.Parse(req.AppID)
	org, _ := middleware.GetOrg(r.Context())

	build, uploadURL, err := h.builds.CreateUploadBuild(r.Context(), appID, org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Data:    types.UploadBuildResponse{Build: build, UploadURL: uploadURL},
	})
}

// Uploaded is the client's notification that the source bundle is in place.
func (h *BuildsHandler) Uploaded(w http.ResponseWriter, r *http.Request) {
	var req types.BuildUploadedRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	buildID, _ := uuid.Parse(req.BuildID)
	appID, _ := uuid.Parse(req.AppID)
	org, _ := middleware.GetOrg(r.Context())

	if err := h.builds.CompleteUpload(r.Context(), buildID, appID, org.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.APIResponse{Success: true})
}

func (h *BuildsHandler) List(w http.ResponseWriter, r *http.Request) {
	appID, err := uuid.Parse(r.URL.Query().Get("app_id"))
	if err != nil {
		writeInvalid(w, "app_id query parameter is required")
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	items, err := h.builds.ListBuilds(r.Context(), appID, org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *BuildsHandler) Get(w http.ResponseWriter, r *http.Request) {
	buildID, err := pathUUID(r, "buildId")
	if err != nil {
		writeError(w, err)
		return
	}
	appID, err := uuid.Parse(r.URL.Query().Get("app_id"))
	if err != nil {
		writeInvalid(w, "app_id query parameter is required")
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	build, err := h.builds.GetBuild(r.Context(), buildID, appID, org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: build})
}

// Status is the machine callback build jobs post progress and outcomes to.
// The route is guarded by the runner shared secret; on top of that the body's
// app and org ids must match the build row exactly.
func (h *BuildsHandler) Status(w http.ResponseWriter, r *http.Request) {
	buildID, err := pathUUID(r, "buildId")
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.BuildStatusRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appID, _ := uuid.Parse(req.AppID)
	orgID, _ := uuid.Parse(req.OrgID)

	status := models.BuildStatus(req.Status)
	if !status.Valid() {
		writeError(w, appErr.New(appErr.CodeInvalid, "unknown build status"))
		return
	}

	build, err := h.builds.ApplyStatusCallback(r.Context(), buildID, appID, orgID, status, req.Logs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: build})
}
