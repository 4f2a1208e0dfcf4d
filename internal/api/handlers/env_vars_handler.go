package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/services"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type EnvVarsHandler struct {
	vars services.EnvVarService
}

func NewEnvVarsHandler(vars services.EnvVarService) *EnvVarsHandler {
	return &EnvVarsHandler{vars: vars}
}

func (h *EnvVarsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.EnvVarCreateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	envID, _ := uuid.Parse(req.EnvironmentID)
	org, _ := middleware.GetOrg(r.Context())

	row, err := h.vars.Create(r.Context(), org.ID, envID, req.Name, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: row})
}

func (h *EnvVarsHandler) List(w http.ResponseWriter, r *http.Request) {
	envID, err := uuid.Parse(r.URL.Query().Get("environment_id"))
	if err != nil {
		writeInvalid(w, "environment_id query parameter is required")
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	items, err := h.vars.List(r.Context(), org.ID, envID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *EnvVarsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req types.EnvVarDeleteRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, _ := uuid.Parse(req.ID)
	org, _ := middleware.GetOrg(r.Context())

	if err := h.vars.Delete(r.Context(), id, org.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

// FetchForRunner returns the flat name -> value map for one environment. The
// runner token's claims must name exactly the (org, environment) in the path;
// any mismatch is unauthorized, not a filtered result.
func (h *EnvVarsHandler) FetchForRunner(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgId")
	if err != nil {
		writeError(w, err)
		return
	}
	envID, err := pathUUID(r, "envId")
	if err != nil {
		writeError(w, err)
		return
	}

	claims := middleware.GetClaims(r.Context())
	if claims == nil || claims.OrgID != orgID.String() || claims.EnvID != envID.String() {
		writeError(w, appErr.New(appErr.CodeUnauthorized, "token is not scoped to this environment"))
		return
	}

	values, err := h.vars.FetchForRunner(r.Context(), orgID, envID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}
