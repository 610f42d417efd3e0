package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/services"
	"github.com/username/easyledger/backend/src/state"
	"github.com/username/easyledger/backend/src/storage"
)

func sendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// statusForError maps ledger errors to HTTP statuses. Anything unrecognised
// is a storage or internal fault.
func statusForError(err error) int {
	switch {
	case errors.Is(err, validation.ErrValidationFailed),
		errors.Is(err, services.ErrUnsupportedFormat),
		services.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalidReference),
		errors.Is(err, storage.ErrInvalidBackup),
		errors.Is(err, storage.ErrUnsupportedVersion),
		errors.Is(err, state.ErrUnknownAccount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// sendError logs err against the request and writes the mapped status.
// Internal faults get a generic message so storage details stay server side.
func sendError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusForError(err)
	ctxLogger := logger.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		ctxLogger.Error("Request failed", "action", action, "error", err)
		sendJSONError(w, "Failed to "+action, status)
		return
	}
	ctxLogger.Warn("Request rejected", "action", action, "error", err)
	sendJSONError(w, err.Error(), status)
}

// decodeJSONBody decodes a bounded JSON request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.FromContext(r.Context()).Warn("Invalid request body", "path", r.URL.Path, "error", err)
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

const maxJSONBodyBytes = 1 << 20
