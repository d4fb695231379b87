package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/longregen/alicia-edge/internal/adapters/http/dto"
	"github.com/longregen/alicia-edge/internal/adapters/http/encoding"
	"github.com/longregen/alicia-edge/internal/domain"
)

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", encoding.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("http: failed to encode response", "error", err)
	}
}

// respond writes data in the content type the client asked for
func respond(w http.ResponseWriter, r *http.Request, data any, status int) {
	if err := encoding.Write(w, r, status, data); err != nil {
		slog.Warn("http: failed to encode response", "error", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, errorType string, message string, status int) {
	respondJSON(w, dto.NewErrorResponse(errorType, message, status), status)
}

// respondDomainError maps a domain error onto an HTTP status.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotActive):
		respondError(w, "not_active", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrLooperStopped):
		respondError(w, "stopped", err.Error(), http.StatusServiceUnavailable)
	default:
		respondError(w, "internal_error", err.Error(), http.StatusInternalServerError)
	}
}

// decodeBody decodes a JSON or MessagePack request body with error handling
func decodeBody[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)

	var req T
	if err := encoding.Read(r, &req); err != nil {
		respondError(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}
