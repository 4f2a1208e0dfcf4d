package handlers

import (
	"net/http"

	"github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
)

type EnvironmentsHandler struct {
	repo repository.EnvironmentRepository
}

func NewEnvironmentsHandler(repo repository.EnvironmentRepository) *EnvironmentsHandler {
	return &EnvironmentsHandler{repo: repo}
}

func (h *EnvironmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	org, _ := middleware.GetOrg(r.Context())
	items, err := h.repo.ListByOrg(r.Context(), org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *EnvironmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.EnvironmentCreateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}

	org, _ := middleware.GetOrg(r.Context())
	env := models.Environment{
		OrganizationID:        org.ID,
		Name:                  req.Name,
		Slug:                  req.Slug,
		Production:            req.Production,
		RunnerCount:           req.RunnerCount,
		DatabaseInstanceCount: req.DatabaseInstanceCount,
	}
	if env.RunnerCount == 0 {
		env.RunnerCount = 1
	}
	if env.DatabaseInstanceCount == 0 {
		env.DatabaseInstanceCount = 1
	}
	if err := h.repo.Create(r.Context(), &env); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: env})
}

func (h *EnvironmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	var env models.Environment
	if err := h.repo.GetOwned(r.Context(), id, org.ID, &env); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: env})
}

func (h *EnvironmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	if err := h.repo.DeleteOwned(r.Context(), id, org.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}
