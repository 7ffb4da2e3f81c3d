package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/freightsettle/internal/adapter/http/dto"
	"github.com/iho/freightsettle/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSchedulerRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
