package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/removal"
	"github.com/nerrad567/device-core/internal/subsystem"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// Removal guard chain error codes. Each maps one removal sentinel to a
// stable wire code so clients can branch without parsing messages.
const (
	ErrCodeUnknownConfigEntry = "unknown_config_entry"
	ErrCodeRemovalUnsupported = "removal_unsupported"
	ErrCodeUnknownDevice      = "unknown_device"
	ErrCodeEntryNotInDevice   = "config_entry_not_in_device"
	ErrCodeIntegrationMissing = "integration_not_found"
	ErrCodeRemovalRejected    = "removal_rejected"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// classifyRemovalError maps a removal guard chain failure to its wire
// code, caller-facing message, and HTTP status. Errors outside the chain
// (including ErrMutationFailed) fall through to internal_error.
func classifyRemovalError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, removal.ErrUnknownConfigEntry):
		return http.StatusNotFound, ErrCodeUnknownConfigEntry, removal.PublicMessage(err)
	case errors.Is(err, removal.ErrRemovalUnsupported):
		return http.StatusBadRequest, ErrCodeRemovalUnsupported, removal.PublicMessage(err)
	case errors.Is(err, removal.ErrUnknownDevice):
		return http.StatusNotFound, ErrCodeUnknownDevice, removal.PublicMessage(err)
	case errors.Is(err, removal.ErrEntryNotInDevice):
		return http.StatusConflict, ErrCodeEntryNotInDevice, removal.PublicMessage(err)
	case errors.Is(err, removal.ErrIntegrationNotFound):
		return http.StatusConflict, ErrCodeIntegrationMissing, removal.PublicMessage(err)
	case errors.Is(err, removal.ErrRemovalRejected):
		return http.StatusConflict, ErrCodeRemovalRejected, removal.PublicMessage(err)
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "failed to remove config entry from device"
	}
}

// writeRemovalError writes the wire mapping of a removal failure.
func writeRemovalError(w http.ResponseWriter, err error) {
	status, code, message := classifyRemovalError(err)
	writeError(w, status, code, message)
}

// classifyDeviceError maps registry errors from read/update paths.
func classifyDeviceError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "Unknown device"
	case errors.Is(err, device.ErrInvalidField), errors.Is(err, device.ErrInvalidSeed):
		return http.StatusBadRequest, ErrCodeValidation, err.Error()
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "device registry operation failed"
	}
}

// writeDeviceError writes the wire mapping of a registry failure.
func writeDeviceError(w http.ResponseWriter, err error) {
	status, code, message := classifyDeviceError(err)
	writeError(w, status, code, message)
}

// classifyEntryError maps config entry store errors.
func classifyEntryError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, subsystem.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "Unknown config entry"
	case errors.Is(err, subsystem.ErrInvalidEntry):
		return http.StatusBadRequest, ErrCodeValidation, err.Error()
	case errors.Is(err, subsystem.ErrEntryExists):
		return http.StatusConflict, ErrCodeConflict, "config entry already exists"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "config entry operation failed"
	}
}

// writeEntryError writes the wire mapping of a config entry store failure.
func writeEntryError(w http.ResponseWriter, err error) {
	status, code, message := classifyEntryError(err)
	writeError(w, status, code, message)
}
