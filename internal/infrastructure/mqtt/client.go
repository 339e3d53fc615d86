package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/config"
)

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected: never connected, or closed.
	StateDisconnected State = iota
	// StateConnecting: waiting for the first connection or reconnecting
	// after a loss.
	StateConnecting
	// StateConnected: the broker acknowledged the connection.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client wraps paho.mqtt.golang with the greenhouse connection lifecycle.
//
// New builds the client without touching the network. Connect starts a
// background connect loop and returns at once; IsConnected and State
// report the outcome. After a connection loss paho reconnects at the
// configured interval until Close.
//
// All methods are safe for concurrent use. Subscriptions are restored on
// every reconnect.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	clientID string
	topics   Topics

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the subset of *logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
// Handlers run on paho's goroutines and should return quickly. A returned
// error is logged.
type MessageHandler func(topic string, payload []byte) error

// New creates a client for cfg without connecting.
func New(cfg config.MQTTConfig) *Client {
	c := newClient(cfg)

	opts := buildClientOptions(cfg, c.clientID)
	configureLWT(opts, c.topics, c.clientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Info("attempting to reconnect to MQTT broker")
		}
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// newClient fills everything except the paho client.
func newClient(cfg config.MQTTConfig) *Client {
	base := cfg.Broker.ClientID
	if base == "" {
		base = "greenhouse-backend"
	}
	return &Client{
		cfg:           cfg,
		clientID:      uniqueClientID(base),
		topics:        Topics{Prefix: cfg.TopicPrefix},
		subscriptions: make(map[string]subscription),
	}
}

// Connect starts connecting in the background. It is a no-op unless the
// client is disconnected, and never blocks on the network.
func (c *Client) Connect() {
	c.stateMu.Lock()
	if c.state != StateDisconnected {
		c.stateMu.Unlock()
		return
	}
	c.state = StateConnecting
	c.stateMu.Unlock()

	token := c.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT connection error", "error", err)
			}
			c.setState(StateDisconnected)
		}
	}()
}

// ClientID is the id presented to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// handleConnect runs on the initial connection and every reconnect. A
// callback arriving when no connect is in progress (the client was closed
// meanwhile) is dropped so the state stays Disconnected.
func (c *Client) handleConnect() {
	c.stateMu.Lock()
	if c.state != StateConnecting {
		c.stateMu.Unlock()
		return
	}
	c.state = StateConnected
	c.stateMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Info("connected to MQTT broker", "broker", c.brokerAddr(), "client_id", c.clientID)
	}

	c.restoreSubscriptions()
	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, statusPayload("online", c.clientID, ""))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect runs when an established connection is lost. Paho is
// already retrying at this point.
func (c *Client) handleDisconnect(err error) {
	c.stateMu.Lock()
	if c.state == StateConnected {
		c.state = StateConnecting
	}
	c.stateMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) brokerAddr() string {
	return fmt.Sprintf("%s:%d", c.cfg.Broker.Host, c.cfg.Broker.Port)
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close publishes a graceful offline status when connected, then
// disconnects. Paho stops reconnecting and later publishes fail with
// ErrNotConnected. Calling Close on a disconnected client is safe.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload("offline", c.clientID, "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.setState(StateDisconnected)
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// HealthCheck returns ErrNotConnected unless a broker connection is live.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// State returns the lifecycle state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the broker connection is up right now.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected && c.client.IsConnectionOpen()
}

// SetOnConnect sets a callback invoked on every (re)connection.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for connection events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adds panic recovery and error logging to a handler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
