package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "route "+r.Method+" "+r.URL.Path+" not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/sensor-data", func(r chi.Router) {
			r.Post("/", s.handleStoreReading)
			r.Get("/", s.handleListReadings)
			r.Get("/{sensorId}/statistics", s.handleStatistics)
		})

		r.Get("/alerts", s.handleListAlerts)

		r.Post("/device-control", s.handleDeviceControl)
		r.Get("/device-logs", s.handleListDeviceLogs)

		r.Route("/database", func(r chi.Router) {
			r.Get("/health", s.handleDatabaseHealth)
			r.Get("/metrics", s.handleDatabaseMetrics)
		})

		r.Post("/maintenance/prune", s.handlePrune)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
