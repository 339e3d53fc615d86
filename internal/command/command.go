// Package command relays actuator commands to field devices over MQTT and
// records the outcome of every attempt in the audit log.
package command

import (
	"errors"
	"fmt"
	"strings"
)

// Command is an actuator instruction.
type Command string

const (
	On  Command = "ON"
	Off Command = "OFF"
)

// ErrInvalidCommand is returned by Parse for anything but on/off.
var ErrInvalidCommand = errors.New("command: must be either ON or OFF")

// Parse accepts "on" and "off" in any case.
func Parse(s string) (Command, error) {
	switch c := Command(strings.ToUpper(strings.TrimSpace(s))); c {
	case On, Off:
		return c, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidCommand, s)
	}
}

// DispatchError reports a command that could not be published. Err is the
// transport failure, so errors.Is(err, mqtt.ErrNotConnected) works through
// it.
type DispatchError struct {
	DeviceID string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to send command to device %s: %v", e.DeviceID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
