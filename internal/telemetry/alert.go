package telemetry

import (
	"fmt"
	"strconv"
	"time"
)

// AlertTypeTemperature marks alerts raised by the temperature band check.
const AlertTypeTemperature = "TEMPERATURE_ALERT"

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Alert is a threshold violation recorded with its triggering reading.
// The acknowledgement columns exist but nothing sets them yet.
type Alert struct {
	ID             int64      `json:"id"`
	Type           string     `json:"type"`
	SensorID       string     `json:"sensorId,omitempty"`
	DeviceID       string     `json:"deviceId,omitempty"`
	Value          float64    `json:"value"`
	Threshold      float64    `json:"threshold"`
	Message        string     `json:"message"`
	Severity       Severity   `json:"severity"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Thresholds is the safe temperature band. Values strictly outside
// [Low, High] raise an alert; the bounds themselves do not.
type Thresholds struct {
	High float64
	Low  float64
}

// DefaultThresholds is the 5–35 °C band.
var DefaultThresholds = Thresholds{High: 35, Low: 5}

// EvaluateTemperature returns the alert a reading deserves, or nil.
func (t Thresholds) EvaluateTemperature(r Reading) *Alert {
	var bound float64
	switch {
	case r.Temperature > t.High:
		bound = t.High
	case r.Temperature < t.Low:
		bound = t.Low
	default:
		return nil
	}

	return &Alert{
		Type:      AlertTypeTemperature,
		SensorID:  r.SensorID,
		Value:     r.Temperature,
		Threshold: bound,
		Message: fmt.Sprintf("Temperature %s°C outside safe range on sensor %s",
			strconv.FormatFloat(r.Temperature, 'f', -1, 64), r.SensorID),
		Severity:  SeverityWarning,
		Timestamp: r.Timestamp,
	}
}
