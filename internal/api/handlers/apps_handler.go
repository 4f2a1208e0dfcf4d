package handlers

import (
	"net/http"

	"github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

type AppsHandler struct {
	repo repository.AppRepository
}

func NewAppsHandler(repo repository.AppRepository) *AppsHandler {
	return &AppsHandler{repo: repo}
}

func (h *AppsHandler) List(w http.ResponseWriter, r *http.Request) {
	org, _ := middleware.GetOrg(r.Context())
	items, err := h.repo.ListByOrg(r.Context(), org.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *AppsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.AppCreateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}

	org, _ := middleware.GetOrg(r.Context())
	app := models.App{
		OrganizationID: org.ID,
		Slug:           req.Slug,
		Name:           req.Name,
		Description:    req.Description,
		Public:         req.Public,
		GitRepoURL:     req.GitRepoURL,
		GitRepoBranch:  req.GitRepoBranch,
		GitRepoPath:    req.GitRepoPath,
		BuildCommand:   req.BuildCommand,
		OutputPath:     req.OutputPath,
		Entrypoint:     req.Entrypoint,
	}
	if app.GitRepoBranch == "" {
		app.GitRepoBranch = "main"
	}
	if err := h.repo.Create(r.Context(), &app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: app})
}

func (h *AppsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	org, _ := middleware.GetOrg(r.Context())

	var app models.App
	if err := h.repo.GetOwned(r.Context(), id, org.ID, &app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: app})
}

func (h *AppsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.AppUpdateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}

	org, _ := middleware.GetOrg(r.Context())
	var app models.App
	if err := h.repo.GetOwned(r.Context(), id, org.ID, &app); err != nil {
		writeError(w, err)
		return
	}

	if req.Name != nil {
		app.Name = *req.Name
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if req.Public != nil {
		app.Public = *req.Public
	}
	if req.GitRepoURL != nil {
		app.GitRepoURL = *req.GitRepoURL
	}
	if req.GitRepoBranch != nil {
		app.GitRepoBranch = *req.GitRepoBranch
	}
	if req.GitRepoPath != nil {
		app.GitRepoPath = *req.GitRepoPath
	}
	if req.BuildCommand != nil {
		if *req.BuildCommand == "" {
			writeError(w, appErr.New(appErr.CodeInvalid, "build_command cannot be empty"))
			return
		}
		app.BuildCommand = *req.BuildCommand
	}
	if req.OutputPath != nil {
		if *req.OutputPath == "" {
			writeError(w, appErr.New(appErr.CodeInvalid, "output_path cannot be empty"))
			return
		}
		app.OutputPath = *req.OutputPath
	}
	if req.Entrypoint != nil {
		app.Entrypoint = *req.Entrypoint
	}

	if err := h.repo.Update(r.Context(), &app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: app})
}

func (h *AppsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
