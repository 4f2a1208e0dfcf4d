package handlers

import (
	"net/http"

	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/services"
	"github.com/voltade/platform-engine/internal/token"
)

// ProvisionHandler serves the environment generator plugin protocol and the
// public verification key set.
type ProvisionHandler struct {
	provision services.ProvisionService
	issuer    *token.Issuer
}

func NewProvisionHandler(provision services.ProvisionService, issuer *token.Issuer) *ProvisionHandler {
	return &ProvisionHandler{provision: provision, issuer: issuer}
}

// GetParams implements POST /api/v1/getparams.execute. The generator protocol
// requires the exact {output:{parameters:[...]}} envelope, not the standard
// API response shape.
func (h *ProvisionHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	params, err := h.provision.Parameters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.GeneratorResponse{
		Output: types.GeneratorOutput{Parameters: params},
	})
}

// JWKS serves the published verification keys at the well-known location.
func (h *ProvisionHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	set, err := h.issuer.JWKS(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}
