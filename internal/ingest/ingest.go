// Package ingest records sensor readings published over MQTT.
//
// Sensors publish a JSON reading to <prefix>/sensors/<sensorId>/data. The
// body
// uses the same fields as POST /api/sensor-data; sensorId may be
// omitted, in which case the topic segment is used.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/mqtt"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

const recordTimeout = 5 * time.Second

var (
	// ErrInvalidPayload is returned when a message body is not a JSON reading.
	ErrInvalidPayload = errors.New("ingest: invalid payload")

	// ErrSensorMismatch is returned when the body names a different sensor
	// than the topic.
	ErrSensorMismatch = errors.New("ingest: sensorId does not match topic")

	// ErrUnknownTopic is returned for topics outside the sensor namespace.
	ErrUnknownTopic = errors.New("ingest: not a sensor topic")
)

// Subscriber is the subset of *mqtt.Client the ingester uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	HasSubscription(topic string) bool
}

// Recorder stores validated readings. *telemetry.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, n telemetry.NewReading) (*telemetry.Reading, error)
}

// Logger is the subset of *logging.Logger the ingester uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Deps holds ingester collaborators.
type Deps struct {
	Subscriber Subscriber
	Recorder   Recorder
	Topics     mqtt.Topics
	QoS        byte
	Logger     Logger
}

// Ingester bridges the sensor topic tree to the telemetry store.
type Ingester struct {
	sub    Subscriber
	rec    Recorder
	topics mqtt.Topics
	qos    byte
	logger Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates an ingester. Call Start once the broker is reachable.
func New(deps Deps) *Ingester {
	return &Ingester{
		sub:    deps.Subscriber,
		rec:    deps.Recorder,
		topics: deps.Topics,
		qos:    deps.QoS,
		logger: deps.Logger,
		ctx:    context.Background(),
	}
}

// Start subscribes to every sensor topic. Readings are recorded with a
// context derived from ctx. Calling Start while already subscribed is a
// no-op, so it can be used as an on-connect hook.
func (i *Ingester) Start(ctx context.Context) error {
	i.mu.Lock()
	i.ctx = ctx
	i.mu.Unlock()

	topic := i.topics.AllSensorReadings()
	if i.sub.HasSubscription(topic) {
		return nil
	}
	if err := i.sub.Subscribe(topic, i.qos, i.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// Stop unsubscribes from the sensor topics.
func (i *Ingester) Stop() error {
	return i.sub.Unsubscribe(i.topics.AllSensorReadings())
}

// HandleMessage decodes and records one sensor message.
func (i *Ingester) HandleMessage(topic string, payload []byte) error {
	topicID, ok := i.topics.SensorID(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	var n telemetry.NewReading
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	switch {
	case n.SensorID == "":
		n.SensorID = topicID
	case n.SensorID != topicID:
		return fmt.Errorf("%w: body %q, topic %q", ErrSensorMismatch, n.SensorID, topicID)
	}

	i.mu.Lock()
	parent := i.ctx
	i.mu.Unlock()
	ctx, cancel := context.WithTimeout(parent, recordTimeout)
	defer cancel()

	reading, err := i.rec.Record(ctx, n)
	if err != nil {
		var verr *telemetry.ValidationError
		if errors.As(err, &verr) {
			i.logger.Warn("rejected sensor message", "topic", topic, "error", err)
		}
		return err
	}

	i.logger.Debug("sensor message recorded", "sensor_id", reading.SensorID, "id", reading.ID)
	return nil
}
