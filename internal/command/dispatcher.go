package command

import (
	"context"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/mqtt"
)

// payloadTimeLayout is RFC 3339 in UTC with millisecond precision.
const payloadTimeLayout = "2006-01-02T15:04:05.000Z"

// SuccessMessage is reported for every accepted command.
const SuccessMessage = "Command sent successfully"

// Publisher is the transport a Dispatcher sends through.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishPayload(topic string, payload any) error
	IsConnected() bool
}

// Logger is the subset of *logging.Logger the dispatcher uses.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Listener observes every dispatch attempt after it is audited.
// Implementations must not block.
type Listener interface {
	CommandDispatched(log audit.CommandLog)
}

// Message is the payload devices receive.
type Message struct {
	DeviceID  string  `json:"deviceId"`
	Command   Command `json:"command"`
	Timestamp string  `json:"timestamp"`
}

// Result describes an accepted command.
type Result struct {
	Accepted  bool      `json:"accepted"`
	Message   string    `json:"message"`
	DeviceID  string    `json:"deviceId"`
	Command   Command   `json:"command"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// Deps holds the Dispatcher's collaborators.
type Deps struct {
	Publisher Publisher
	Logs      audit.Repository
	Topics    mqtt.Topics
	Logger    Logger
	Listeners []Listener

	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher publishes commands and audits each attempt.
type Dispatcher struct {
	publisher Publisher
	logs      audit.Repository
	topics    mqtt.Topics
	logger    Logger
	listeners []Listener
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{
		publisher: deps.Publisher,
		logs:      deps.Logs,
		topics:    deps.Topics,
		logger:    deps.Logger,
		listeners: deps.Listeners,
		now:       deps.Now,
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// AddListener registers l. Call it before the dispatcher is shared.
func (d *Dispatcher) AddListener(l Listener) {
	d.listeners = append(d.listeners, l)
}

// Dispatch publishes cmd to the device's control topic and writes exactly
// one audit row with the outcome.
//
// The caller validates deviceID and cmd. A publish failure is returned as a
// *DispatchError after the FAILED row is written. An audit write failure is
// logged and does not change the result.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, cmd Command) (*Result, error) {
	topic := d.topics.DeviceControl(deviceID)
	now := d.now().UTC()

	pubErr := d.publisher.PublishPayload(topic, Message{
		DeviceID:  deviceID,
		Command:   cmd,
		Timestamp: now.Format(payloadTimeLayout),
	})

	entry := audit.CommandLog{
		DeviceID:  deviceID,
		Command:   string(cmd),
		Topic:     topic,
		Status:    audit.StatusSuccess,
		Timestamp: now,
	}
	if pubErr != nil {
		entry.Status = audit.StatusFailed
		entry.ErrorMessage = pubErr.Error()
	}

	if err := d.logs.Create(ctx, &entry); err != nil {
		d.logger.Error("failed to log device command", "device_id", deviceID, "status", entry.Status, "error", err)
	}
	for _, l := range d.listeners {
		l.CommandDispatched(entry)
	}

	if pubErr != nil {
		d.logger.Error("failed to send device command", "device_id", deviceID, "command", cmd, "error", pubErr)
		return nil, &DispatchError{DeviceID: deviceID, Err: pubErr}
	}

	d.logger.Info("device command sent", "device_id", deviceID, "command", cmd, "topic", topic)
	return &Result{
		Accepted:  true,
		Message:   SuccessMessage,
		DeviceID:  deviceID,
		Command:   cmd,
		Topic:     topic,
		Timestamp: now,
	}, nil
}

// ConnectionStatus reports the transport's connectivity flag.
func (d *Dispatcher) ConnectionStatus() bool {
	return d.publisher.IsConnected()
}
