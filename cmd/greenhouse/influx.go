package main

import (
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/influxdb"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// pointWriter is the subset of *influxdb.Client the mirror writes through.
type pointWriter interface {
	WriteSensorReading(sensorID string, values map[string]float64, ts time.Time)
	WriteAlert(alertType, sensorID, severity string, value, threshold float64, ts time.Time)
	WriteDeviceCommand(deviceID, command, status string, success bool, ts time.Time)
}

var _ pointWriter = (*influxdb.Client)(nil)

// influxMirror copies committed readings, alerts and command outcomes to
// InfluxDB for dashboards. Writes are batched and never block the caller.
type influxMirror struct {
	client pointWriter
}

func (m *influxMirror) ReadingRecorded(r telemetry.Reading) {
	values := map[string]float64{
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
	}
	if r.SoilMoisture != nil {
		values["soil_moisture"] = *r.SoilMoisture
	}
	if r.LightIntensity != nil {
		values["light_intensity"] = *r.LightIntensity
	}
	if r.CO2Level != nil {
		values["co2_level"] = *r.CO2Level
	}
	m.client.WriteSensorReading(r.SensorID, values, r.Timestamp)
}

func (m *influxMirror) AlertRaised(a telemetry.Alert) {
	m.client.WriteAlert(a.Type, a.SensorID, string(a.Severity), a.Value, a.Threshold, a.Timestamp)
}

func (m *influxMirror) CommandDispatched(entry audit.CommandLog) {
	m.client.WriteDeviceCommand(entry.DeviceID, entry.Command, string(entry.Status),
		entry.Status == audit.StatusSuccess, entry.Timestamp)
}
