package influxdb

import (
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type capturingWriter struct {
	mu     sync.Mutex
	points []*write.Point
}

func (w *capturingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func newTestClient() (*Client, *capturingWriter) {
	w := &capturingWriter{}
	return &Client{points: w, connected: true}, w
}

func tags(p *write.Point) map[string]string {
	m := make(map[string]string)
	for _, t := range p.TagList() {
		m[t.Key] = t.Value
	}
	return m
}

func fields(p *write.Point) map[string]interface{} {
	m := make(map[string]interface{})
	for _, f := range p.FieldList() {
		m[f.Key] = f.Value
	}
	return m
}

func TestWriteSensorReading(t *testing.T) {
	c, w := newTestClient()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.WriteSensorReading("s1", map[string]float64{"temperature": 24.5, "humidity": 60}, ts)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != MeasurementSensorReading || !p.Time().Equal(ts) {
		t.Errorf("point = %s at %v", p.Name(), p.Time())
	}
	if tags(p)["sensor_id"] != "s1" {
		t.Errorf("tags = %v", tags(p))
	}
	f := fields(p)
	if f["temperature"] != 24.5 || f["humidity"] != 60.0 {
		t.Errorf("fields = %v", f)
	}
}

func TestWriteSensorReading_EmptyValuesSkipped(t *testing.T) {
	c, w := newTestClient()
	c.WriteSensorReading("s1", nil, time.Now())
	if len(w.points) != 0 {
		t.Error("a reading without values should not be written")
	}
}

func TestWriteAlert(t *testing.T) {
	c, w := newTestClient()

	c.WriteAlert("TEMPERATURE_ALERT", "s1", "WARNING", 40, 35, time.Now())

	p := w.points[0]
	want := map[string]string{"type": "TEMPERATURE_ALERT", "sensor_id": "s1", "severity": "WARNING"}
	got := tags(p)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("tag %s = %q, want %q", k, got[k], v)
		}
	}
	if f := fields(p); f["value"] != 40.0 || f["threshold"] != 35.0 {
		t.Errorf("fields = %v", f)
	}
}

func TestWriteDeviceCommand(t *testing.T) {
	c, w := newTestClient()

	c.WriteDeviceCommand("fan_1", "ON", "SUCCESS", true, time.Now())
	c.WriteDeviceCommand("fan_1", "ON", "FAILED", false, time.Now())

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	// Integer fields are stored as int64 by the point constructor.
	if got := fields(w.points[0])["success"]; got != int64(1) {
		t.Errorf("success field = %v (%T), want 1", got, got)
	}
	if got := fields(w.points[1])["success"]; got != int64(0) {
		t.Errorf("success field = %v, want 0", got)
	}
	if tags(w.points[1])["status"] != "FAILED" {
		t.Errorf("tags = %v", tags(w.points[1]))
	}
}

func TestWrites_SkippedWhenDisconnected(t *testing.T) {
	w := &capturingWriter{}
	c := &Client{points: w}

	c.WriteSensorReading("s1", map[string]float64{"temperature": 20}, time.Now())
	c.WriteAlert("TEMPERATURE_ALERT", "s1", "WARNING", 40, 35, time.Now())
	c.WriteDeviceCommand("fan_1", "ON", "SUCCESS", true, time.Now())

	if len(w.points) != 0 {
		t.Errorf("points = %d, want none while disconnected", len(w.points))
	}
}

func TestClose_NotConnected(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on empty client = %v", err)
	}
}
