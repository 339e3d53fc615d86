package api

import (
	"encoding/json"
	"net/http"

	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// Error represents a structured error response.
type Error struct {
	Status  int                    `json:"status"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Errors  []telemetry.FieldError `json:"errors,omitempty"`
	Detail  string                 `json:"detail,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnavailable    = "service_unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// Envelope wraps successful responses.
type Envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Count      *int   `json:"count,omitempty"`
	Data       any    `json:"data,omitempty"`
	Pagination any    `json:"pagination,omitempty"`
}

const statusSuccess = "success"

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

// writeValidationError writes a 400 listing every invalid field.
func writeValidationError(w http.ResponseWriter, fields []telemetry.FieldError) {
	writeJSON(w, http.StatusBadRequest, Error{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeValidation,
		Message: "validation failed",
		Errors:  fields,
	})
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response. In dev mode the cause is
// included as detail.
func (s *Server) writeInternalError(w http.ResponseWriter, message string, cause error) {
	e := Error{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeInternal,
		Message: message,
	}
	if s.devMode && cause != nil {
		e.Detail = cause.Error()
	}
	writeJSON(w, http.StatusInternalServerError, e)
}
