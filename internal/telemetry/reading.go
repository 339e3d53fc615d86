package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Range limits for submitted readings.
const (
	MinTemperature = -50.0
	MaxTemperature = 100.0
	MinPercent     = 0.0
	MaxPercent     = 100.0
)

// Reading is a stored sensor sample. Optional measurements are nil when the
// sensor did not report them.
type Reading struct {
	ID             int64     `json:"id"`
	SensorID       string    `json:"sensorId"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	SoilMoisture   *float64  `json:"soilMoisture,omitempty"`
	LightIntensity *float64  `json:"lightIntensity,omitempty"`
	CO2Level       *float64  `json:"co2Level,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewReading is a submitted sample before validation. Temperature and
// Humidity are pointers so that an absent value can be told apart from 0.
// A zero Timestamp means "now".
type NewReading struct {
	SensorID       string    `json:"sensorId"`
	Temperature    *float64  `json:"temperature"`
	Humidity       *float64  `json:"humidity"`
	SoilMoisture   *float64  `json:"soilMoisture,omitempty"`
	LightIntensity *float64  `json:"lightIntensity,omitempty"`
	CO2Level       *float64  `json:"co2Level,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero"`
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a submission.
// It is never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// inRange reports lo <= v <= hi. NaN is never in range.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Validate checks required fields and ranges, returning a *ValidationError
// naming every problem, or nil.
func (n NewReading) Validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(n.SensorID) == "" {
		verr.add("sensorId", "is required")
	}

	switch {
	case n.Temperature == nil:
		verr.add("temperature", "is required")
	case !inRange(*n.Temperature, MinTemperature, MaxTemperature):
		verr.add("temperature", fmt.Sprintf("must be between %g and %g", MinTemperature, MaxTemperature))
	}

	switch {
	case n.Humidity == nil:
		verr.add("humidity", "is required")
	case !inRange(*n.Humidity, MinPercent, MaxPercent):
		verr.add("humidity", fmt.Sprintf("must be between %g and %g", MinPercent, MaxPercent))
	}

	if n.SoilMoisture != nil && !inRange(*n.SoilMoisture, MinPercent, MaxPercent) {
		verr.add("soilMoisture", fmt.Sprintf("must be between %g and %g", MinPercent, MaxPercent))
	}
	if n.LightIntensity != nil && !(*n.LightIntensity >= 0) {
		verr.add("lightIntensity", "must not be negative")
	}
	if n.CO2Level != nil && !(*n.CO2Level >= 0) {
		verr.add("co2Level", "must not be negative")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// toReading builds the stored form. Validate must have passed.
func (n NewReading) toReading(now time.Time) Reading {
	ts := n.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return Reading{
		SensorID:       n.SensorID,
		Temperature:    *n.Temperature,
		Humidity:       *n.Humidity,
		SoilMoisture:   n.SoilMoisture,
		LightIntensity: n.LightIntensity,
		CO2Level:       n.CO2Level,
		Timestamp:      ts.UTC().Truncate(time.Microsecond),
	}
}
