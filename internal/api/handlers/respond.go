package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/api/validators"
	appErr "github.com/voltade/platform-engine/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, types.HTTPStatus(err), types.APIResponse{Success: false, Error: types.FromAppError(err)})
}

func writeInvalid(w http.ResponseWriter, msg string) {
	writeError(w, appErr.New(appErr.CodeInvalid, msg))
}

// decodeValid decodes the JSON body into req and runs struct validation.
func decodeValid(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return appErr.New(appErr.CodeInvalid, "invalid json body")
	}
	if err := validators.New().Struct(req); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "request validation failed")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appErr.New(appErr.CodeInvalid, "malformed "+name)
	}
	return id, nil
}
