package mqtt

import "strings"

// DefaultTopicPrefix roots every greenhouse topic.
const DefaultTopicPrefix = "greenhouse"

const sensorDataSuffix = "/data"

// Topics builds greenhouse MQTT topics under Prefix. The zero value uses
// DefaultTopicPrefix.
//
//	topics := mqtt.Topics{}
//	topics.DeviceControl("fan_1")
//	// Returns: "greenhouse/control/fan_1"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// ControlPrefix is the topic prefix device commands are published under,
// including the trailing slash.
//
// Example: greenhouse/control/
func (t Topics) ControlPrefix() string {
	return t.prefix() + "/control/"
}

// DeviceControl returns the command topic for one actuator.
//
// Example: greenhouse/control/pump_1
func (t Topics) DeviceControl(deviceID string) string {
	return t.ControlPrefix() + deviceID
}

// SensorReadings returns the topic a sensor publishes readings on.
//
// Example: greenhouse/sensors/temperature_sensor_1/data
func (t Topics) SensorReadings(sensorID string) string {
	return t.prefix() + "/sensors/" + sensorID + sensorDataSuffix
}

// AllSensorReadings matches every sensor's reading topic.
//
// Pattern: greenhouse/sensors/+/data
func (t Topics) AllSensorReadings() string {
	return t.prefix() + "/sensors/+" + sensorDataSuffix
}

// SensorID extracts the sensor id from a reading topic.
// ok is false when topic is not a reading topic under this prefix.
func (t Topics) SensorID(topic string) (id string, ok bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/sensors/")
	if !ok {
		return "", false
	}
	id, ok = strings.CutSuffix(rest, sensorDataSuffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// SystemStatus carries this service's retained online/offline status.
//
// Example: greenhouse/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
