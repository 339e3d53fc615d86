package api

import (
	"errors"
	"net/http"

	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// defaultPruneDays applies when POST /api/maintenance/prune has no days
// parameter.
const defaultPruneDays = 90

// handleDatabaseHealth returns the storage health report, 503 when unhealthy.
func (s *Server) handleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	health := s.store.HealthCheck(r.Context())
	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleDatabaseMetrics returns table counts, reading span and storage size.
func (s *Server) handleDatabaseMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Metrics(r.Context())
	if err != nil {
		s.writeInternalError(w, "Failed to get database metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Status: statusSuccess, Data: m})
}

// handlePrune deletes readings and command logs older than ?days=N.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	days := q.int("days", defaultPruneDays)
	if len(q.errs) > 0 {
		writeValidationError(w, q.errs)
		return
	}

	result, err := s.store.Prune(r.Context(), days)
	if err != nil {
		var verr *telemetry.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr.Fields)
			return
		}
		s.writeInternalError(w, "Failed to clean up old data", err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Status:  statusSuccess,
		Message: "Old data cleaned up",
		Data:    result,
	})
}
