package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/BranchLift/internal/lookup"
	"github.com/atinyakov/BranchLift/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps core errors onto status codes. Unknown errors become 500
// without leaking their text.
func writeError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, service.ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, errorBody{Error: service.ErrDuplicateEmail.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: service.ErrInvalidCredentials.Error()})
	case errors.Is(err, service.ErrNoSession):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "login required"})
	case errors.Is(err, lookup.ErrLookup):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: lookup.ErrLookup.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request"})
		return false
	}
	return true
}
