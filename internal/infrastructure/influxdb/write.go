package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names in the bucket.
const (
	MeasurementSensorReading = "sensor_reading"
	MeasurementAlert         = "alert"
	MeasurementDeviceCommand = "device_command"
)

// WriteSensorReading records one sample. values holds the measurements the
// sensor reported (temperature, humidity and any optional ones).
//
// Example:
//
//	client.WriteSensorReading("temperature_sensor_1",
//	    map[string]float64{"temperature": 24.1, "humidity": 61}, ts)
func (c *Client) WriteSensorReading(sensorID string, values map[string]float64, ts time.Time) {
	if !c.IsConnected() || len(values) == 0 {
		return
	}

	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}
	c.points.WritePoint(write.NewPoint(
		MeasurementSensorReading,
		map[string]string{"sensor_id": sensorID},
		fields,
		ts,
	))
}

// WriteAlert records a threshold violation.
func (c *Client) WriteAlert(alertType, sensorID, severity string, value, threshold float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	c.points.WritePoint(write.NewPoint(
		MeasurementAlert,
		map[string]string{
			"type":      alertType,
			"sensor_id": sensorID,
			"severity":  severity,
		},
		map[string]interface{}{
			"value":     value,
			"threshold": threshold,
		},
		ts,
	))
}

// WriteDeviceCommand records a dispatch attempt. success is stored as a
// 0/1 field so outcomes can be summed per device.
func (c *Client) WriteDeviceCommand(deviceID, command, status string, success bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	ok := 0
	if success {
		ok = 1
	}
	c.points.WritePoint(write.NewPoint(
		MeasurementDeviceCommand,
		map[string]string{
			"device_id": deviceID,
			"command":   command,
			"status":    status,
		},
		map[string]interface{}{"success": ok},
		ts,
	))
}
