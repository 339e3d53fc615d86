// Package audit records one row per device-command dispatch attempt and
// serves filtered, paginated reads of that history.
package audit

import (
	"context"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

// Status is the outcome of a dispatch attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// CommandLog is a single dispatch attempt. Rows are never updated.
type CommandLog struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"deviceId"`
	Command      string    `json:"command"`
	Topic        string    `json:"topic"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Filter narrows List. Empty fields are ignored; set fields are AND-combined.
type Filter struct {
	DeviceID  string
	Status    Status
	Command   string
	StartDate *time.Time
	EndDate   *time.Time
}

// SortFields are the values accepted in pagination.Request.SortBy.
var SortFields = []string{"timestamp", "id", "deviceId", "command", "status"}

// Repository stores and queries command logs.
type Repository interface {
	// Create assigns ID (and Timestamp when zero) and inserts the row.
	Create(ctx context.Context, log *CommandLog) error

	// List returns one page of matching logs and the total match count.
	List(ctx context.Context, filter Filter, page pagination.Request) ([]CommandLog, int, error)

	// CountByCommand counts all logs for a device grouped by command.
	CountByCommand(ctx context.Context, deviceID string) (map[string]int, error)

	// DeleteBefore removes logs with a timestamp strictly before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the total number of logs.
	Count(ctx context.Context) (int, error)

	// Probe verifies the backing table or collection is readable.
	Probe(ctx context.Context) error
}
