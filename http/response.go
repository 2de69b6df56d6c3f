package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/deaddrop/deaddrop"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the error response matching the error kind. All
// retrieval failures already arrive collapsed to deaddrop.ErrNotFound and
// map to one uniform 404.
func HandleError(w http.ResponseWriter, err error) {
	slog.Error("request error", "error", err)

	switch {
	case errors.Is(err, deaddrop.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "File not found or has expired")
	case errors.Is(err, deaddrop.ErrTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds maximum size")
	case errors.Is(err, deaddrop.ErrEmptyFile):
		WriteError(w, http.StatusBadRequest, "invalid_request", "File is empty")
	case errors.Is(err, deaddrop.ErrInvalidTTL):
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid TTL value")
	case errors.Is(err, deaddrop.ErrInvalidLimit):
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid download limit")
	case errors.Is(err, deaddrop.ErrInvalidFilename):
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid filename")
	case errors.Is(err, deaddrop.ErrMetadata) && errors.Is(err, deaddrop.ErrTimeout):
		WriteError(w, http.StatusGatewayTimeout, "timeout", "Metadata store timed out")
	case errors.Is(err, deaddrop.ErrMetadata):
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Metadata store unavailable")
	case errors.Is(err, deaddrop.ErrStorage):
		WriteError(w, http.StatusInternalServerError, "storage_error", "Storage failure")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
