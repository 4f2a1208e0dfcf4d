package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/services"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type InstallationsHandler struct {
	installs services.InstallationService
}

func NewInstallationsHandler(installs services.InstallationService) *InstallationsHandler {
	return &InstallationsHandler{installs: installs}
}

func (h *InstallationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.InstallRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appID, _ := uuid.Parse(req.AppID)
	envID, _ := uuid.Parse(req.EnvironmentID)
	buildID, _ := uuid.Parse(req.BuildID)
	org, _ := middleware.GetOrg(r.Context())

	install, err := h.installs.Install(r.Context(), appID, envID, org.ID, buildID)
	if err != nil {
		// The row may have been written even when the activation push failed;
		// return it alongside the error so clients can retry just the push.
		if install != nil && appErr.IsCode(err, appErr.CodeUnavailable) {
			writeJSON(w, types.HTTPStatus(err), types.APIResponse{
				Success: false,
				Data:    install,
				Error:   types.FromAppError(err),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: install})
}

// Update repoints an existing installation at a different ready build.
func (h *InstallationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req types.InstallRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appID, _ := uuid.Parse(req.AppID)
	envID, _ := uuid.Parse(req.EnvironmentID)
	buildID, _ := uuid.Parse(req.BuildID)
	org, _ := middleware.GetOrg(r.Context())

	install, err := h.installs.SetBuild(r.Context(), appID, envID, org.ID, buildID)
	if err != nil {
		if install != nil && appErr.IsCode(err, appErr.CodeUnavailable) {
			writeJSON(w, types.HTTPStatus(err), types.APIResponse{
				Success: false,
				Data:    install,
				Error:   types.FromAppError(err),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: install})
}

func (h *InstallationsHandler) List(w http.ResponseWriter, r *http.Request) {
	envID, err := uuid.Parse(r.URL.Query().Get("environment_id"))
	if err != nil {
		writeInvalid(w, "environment_id query parameter is required")
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	items, err := h.installs.ListByEnvironment(r.Context(), envID, org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *InstallationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req types.InstallationDeleteRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appID, _ := uuid.Parse(req.AppID)
	envID, _ := uuid.Parse(req.EnvironmentID)
	org, _ := middleware.GetOrg(r.Context())

	if err := h.installs.Uninstall(r.Context(), appID, envID, org.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

// GetPublic is the unauthenticated discovery endpoint: it resolves the
// production installation of a public app by organization and app slug.
func (h *InstallationsHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	orgSlug := r.URL.Query().Get("organizationSlug")
	appSlug := r.URL.Query().Get("appSlug")
	if orgSlug == "" || appSlug == "" {
		writeInvalid(w, "organizationSlug and appSlug query parameters are required")
		return
	}

	install, err := h.installs.GetPublic(r.Context(), orgSlug, appSlug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: install})
}

// ListForRunner serves the runner's own scoped installation listing. The
// runner token pins the (organization, environment) pair, so no parameters
// are taken from the request.
func (h *InstallationsHandler) ListForRunner(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, appErr.New(appErr.CodeUnauthorized, "missing credentials"))
		return
	}
	orgID, err1 := uuid.Parse(claims.OrgID)
	envID, err2 := uuid.Parse(claims.EnvID)
	if err1 != nil || err2 != nil {
		writeError(w, appErr.New(appErr.CodeUnauthorized, "token carries no environment scope"))
		return
	}

	items, err := h.installs.ListByEnvironment(r.Context(), envID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}
