package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"control default prefix", Topics{}.DeviceControl("fan_1"), "greenhouse/control/fan_1"},
		{"control prefix", Topics{}.ControlPrefix(), "greenhouse/control/"},
		{"control custom prefix", Topics{Prefix: "gh2/"}.DeviceControl("pump_1"), "gh2/control/pump_1"},
		{"sensor readings", Topics{}.SensorReadings("s1"), "greenhouse/sensors/s1/data"},
		{"all sensors", Topics{}.AllSensorReadings(), "greenhouse/sensors/+/data"},
		{"system status", Topics{Prefix: "greenhouse"}.SystemStatus(), "greenhouse/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_SensorID(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"greenhouse/sensors/temperature_sensor_1/data", "temperature_sensor_1", true},
		{"greenhouse/sensors/s1", "", false},
		{"greenhouse/sensors//data", "", false},
		{"greenhouse/sensors/a/b/data", "", false},
		{"greenhouse/sensors/s1/status", "", false},
		{"greenhouse/control/fan_1", "", false},
		{"other/sensors/s1/data", "", false},
	}
	for _, tt := range tests {
		id, ok := Topics{}.SensorID(tt.topic)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("SensorID(%q) = %q, %v; want %q, %v", tt.topic, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
