package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// handleStoreReading validates and stores one sensor reading.
func (s *Server) handleStoreReading(w http.ResponseWriter, r *http.Request) {
	var req telemetry.NewReading
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.SensorID = strings.TrimSpace(req.SensorID)
	if req.SensorID != "" && !idPattern.MatchString(req.SensorID) {
		writeValidationError(w, []telemetry.FieldError{{
			Field:   "sensorId",
			Message: "may only contain letters, digits, '_' and '-'",
		}})
		return
	}

	reading, err := s.store.Record(r.Context(), req)
	if err != nil {
		var verr *telemetry.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr.Fields)
			return
		}
		s.writeInternalError(w, "Failed to store sensor data", err)
		return
	}

	writeJSON(w, http.StatusCreated, Envelope{
		Status:  statusSuccess,
		Message: "Sensor data stored successfully",
		Data:    reading,
	})
}

// handleListReadings returns readings matching the query filters.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	filter := telemetry.Filter{
		SensorID:       q.id("sensorId"),
		MinTemperature: q.float("minTemperature"),
		MaxTemperature: q.float("maxTemperature"),
	}
	filter.StartDate, filter.EndDate = q.dateRange()
	page := q.page()
	if len(q.errs) > 0 {
		writeValidationError(w, q.errs)
		return
	}

	result, err := s.store.Query(r.Context(), filter, page)
	if err != nil {
		s.writeInternalError(w, "Failed to fetch sensor data", err)
		return
	}

	count := len(result.Data)
	writeJSON(w, http.StatusOK, Envelope{
		Status:     statusSuccess,
		Count:      &count,
		Data:       result.Data,
		Pagination: result.Pagination,
	})
}

// handleStatistics aggregates one sensor's readings over a period.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorId")
	if !idPattern.MatchString(sensorID) {
		writeValidationError(w, []telemetry.FieldError{{
			Field:   "sensorId",
			Message: "may only contain letters, digits, '_' and '-'",
		}})
		return
	}

	stats, err := s.store.Statistics(r.Context(), sensorID, r.URL.Query().Get("period"))
	if err != nil {
		s.writeInternalError(w, "Failed to compute sensor statistics", err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{Status: statusSuccess, Data: stats})
}

// handleListAlerts returns alerts matching the query filters.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	filter := telemetry.AlertFilter{
		SensorID:     q.id("sensorId"),
		Type:         strings.TrimSpace(r.URL.Query().Get("type")),
		Acknowledged: q.bool("acknowledged"),
	}
	if sev := r.URL.Query().Get("severity"); sev != "" {
		filter.Severity = telemetry.Severity(strings.ToUpper(sev))
		if !filter.Severity.Valid() {
			q.fail("severity", "must be one of INFO, WARNING, ERROR, CRITICAL")
		}
	}
	filter.StartDate, filter.EndDate = q.dateRange()
	page := q.page()
	if len(q.errs) > 0 {
		writeValidationError(w, q.errs)
		return
	}

	result, err := s.store.QueryAlerts(r.Context(), filter, page)
	if err != nil {
		s.writeInternalError(w, "Failed to fetch alerts", err)
		return
	}

	count := len(result.Data)
	writeJSON(w, http.StatusOK, Envelope{
		Status:     statusSuccess,
		Count:      &count,
		Data:       result.Data,
		Pagination: result.Pagination,
	})
}
