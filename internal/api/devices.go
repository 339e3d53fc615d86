package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/command"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/mqtt"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// DeviceControlRequest is the body of POST /api/device-control.
type DeviceControlRequest struct {
	DeviceID string `json:"deviceId"`
	Command  string `json:"command"`
}

// handleDeviceControl relays an ON/OFF command to a device.
func (s *Server) handleDeviceControl(w http.ResponseWriter, r *http.Request) {
	var req DeviceControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.DeviceID == "" || strings.TrimSpace(req.Command) == "" {
		writeBadRequest(w, "deviceId and command are required")
		return
	}
	if !idPattern.MatchString(req.DeviceID) {
		writeValidationError(w, []telemetry.FieldError{{
			Field:   "deviceId",
			Message: "may only contain letters, digits, '_' and '-'",
		}})
		return
	}
	cmd, err := command.Parse(req.Command)
	if err != nil {
		writeBadRequest(w, "command must be either ON or OFF")
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), req.DeviceID, cmd)
	if err != nil {
		s.writeInternalError(w, dispatchErrorMessage(err), err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{
		Status:  statusSuccess,
		Message: result.Message,
		Data:    result,
	})
}

// dispatchErrorMessage maps a dispatch failure to the client-facing message.
func dispatchErrorMessage(err error) string {
	switch {
	case errors.Is(err, mqtt.ErrNotConnected):
		return "MQTT broker is not connected"
	case errors.Is(err, mqtt.ErrPublishFailed):
		return "Failed to send command to MQTT broker"
	default:
		return "Failed to send device command"
	}
}

// handleListDeviceLogs returns command audit entries matching the filters.
func (s *Server) handleListDeviceLogs(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	filter := audit.Filter{
		DeviceID: q.id("deviceId"),
	}
	if st := r.URL.Query().Get("status"); st != "" {
		filter.Status = audit.Status(strings.ToUpper(st))
		if filter.Status != audit.StatusSuccess && filter.Status != audit.StatusFailed {
			q.fail("status", "must be SUCCESS or FAILED")
		}
	}
	if c := r.URL.Query().Get("command"); c != "" {
		cmd, err := command.Parse(c)
		if err != nil {
			q.fail("command", "must be either ON or OFF")
		}
		filter.Command = string(cmd)
	}
	filter.StartDate, filter.EndDate = q.dateRange()
	page := q.page()
	if len(q.errs) > 0 {
		writeValidationError(w, q.errs)
		return
	}

	result, err := s.store.QueryDeviceLogs(r.Context(), filter, page)
	if err != nil {
		s.writeInternalError(w, "Failed to fetch device logs", err)
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
