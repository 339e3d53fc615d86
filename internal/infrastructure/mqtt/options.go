package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connection attempt.
	defaultConnectTimeout = 4 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	defaultKeepAlive = 60 * time.Second

	// defaultReconnectInterval applies when the config leaves it unset.
	defaultReconnectInterval = time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// uniqueClientID appends a short random suffix so that two instances with
// the same configured id do not kick each other off the broker.
func uniqueClientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// reconnectInterval converts the configured seconds to a duration.
func reconnectInterval(cfg config.MQTTConfig) time.Duration {
	if cfg.Reconnect.Interval <= 0 {
		return defaultReconnectInterval
	}
	return time.Duration(cfg.Reconnect.Interval) * time.Second
}

// buildClientOptions creates paho options from the MQTT config.
//
// Both the initial connect and the reconnect loop retry at the configured
// interval. Paho's reconnect backoff is capped at the same value so the
// retry cadence stays fixed.
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	interval := reconnectInterval(cfg)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(interval)
	opts.SetMaxReconnectInterval(interval)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// statusMessage is published retained on the system status topic.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	data, _ := json.Marshal(statusMessage{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

// configureLWT registers the last-will message the broker publishes if this
// client drops without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	payload := statusPayload("offline", clientID, "unexpected_disconnect")
	opts.SetBinaryWill(topics.SystemStatus(), payload, 1, true)
}
