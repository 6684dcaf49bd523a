package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"simunet-portal/core/workflow"
)

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError translates the engine's failure taxonomy into transport
// status codes. The core itself never deals in HTTP.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errUnknownActor):
		status = http.StatusUnauthorized
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrPermissionDenied), errors.Is(err, workflow.ErrScopeDenied):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// badRequest reports an unparseable or incomplete payload.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}
