package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps a single message at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker's acknowledgment
// (for QoS > 0) up to the publish timeout.
//
// Returns ErrNotConnected without touching the network when the client is
// not connected, or an error wrapping ErrPublishFailed.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if logger := c.getLogger(); logger != nil {
		logger.Info("published MQTT message", "topic", topic, "bytes", len(payload))
	}
	return nil
}

// PublishPayload encodes payload and publishes it non-retained at the
// configured QoS.
//
// Strings and byte slices are sent as-is, booleans and numbers in their
// decimal form, and anything else as JSON.
//
// Example:
//
//	err := client.PublishPayload(client.Topics().DeviceControl("fan_1"),
//	    map[string]string{"command": "ON"})
func (c *Client) PublishPayload(topic string, payload any) error {
	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, data, byte(c.cfg.QoS), false)
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return []byte(fmt.Sprint(v)), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		return data, nil
	}
}
