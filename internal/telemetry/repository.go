package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

// ErrStorage wraps every persistence failure surfaced by the Store.
var ErrStorage = errors.New("telemetry: storage failure")

// Filter narrows reading queries. Nil or empty fields are ignored; set
// fields are AND-combined and ranges are inclusive.
type Filter struct {
	SensorID       string
	StartDate      *time.Time
	EndDate        *time.Time
	MinTemperature *float64
	MaxTemperature *float64
}

// AlertFilter narrows alert queries.
type AlertFilter struct {
	SensorID     string
	Type         string
	Severity     Severity
	Acknowledged *bool
	StartDate    *time.Time
	EndDate      *time.Time
}

// Sortable fields accepted in pagination.Request.SortBy.
var (
	ReadingSortFields = []string{"timestamp", "id", "sensorId", "temperature", "humidity"}
	AlertSortFields   = []string{"timestamp", "id", "severity", "value"}
)

// ReadingStats aggregates one sensor's readings over a window.
// Averages and extremes are nil when the window is empty.
type ReadingStats struct {
	AvgTemperature *float64 `json:"avgTemperature"`
	MinTemperature *float64 `json:"minTemperature"`
	MaxTemperature *float64 `json:"maxTemperature"`
	AvgHumidity    *float64 `json:"avgHumidity"`
	ReadingCount   int      `json:"readingCount"`
}

// Summary holds table-level counts used for metrics.
type Summary struct {
	ReadingCount  int
	AlertCount    int
	OldestReading *time.Time
	LatestReading *time.Time
}

// Repository persists readings and alerts.
type Repository interface {
	// InsertReading stores r and, when alert is non-nil, the alert, in one
	// transaction. IDs are assigned on success only.
	InsertReading(ctx context.Context, r *Reading, alert *Alert) error

	ListReadings(ctx context.Context, filter Filter, page pagination.Request) ([]Reading, int, error)
	ReadingStats(ctx context.Context, sensorID string, from, to time.Time) (ReadingStats, error)
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListAlerts(ctx context.Context, filter AlertFilter, page pagination.Request) ([]Alert, int, error)
	Summary(ctx context.Context) (Summary, error)

	// Probe verifies the reading and alert tables are readable.
	Probe(ctx context.Context) error
}

// Backend describes the storage engine for health and size reports.
// *database.DB and *mongodb.Client satisfy it.
type Backend interface {
	Name() string
	Location() string
	HealthCheck(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Size(ctx context.Context) (int64, error)
}
