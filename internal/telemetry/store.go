package telemetry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

const bytesPerMegabyte = 1024 * 1024

// Logger is the subset of *logging.Logger the store uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Listener is notified after a reading (and its alert, if any) commits.
// Implementations must not block.
type Listener interface {
	ReadingRecorded(r Reading)
	AlertRaised(a Alert)
}

// Deps holds the Store's collaborators.
type Deps struct {
	Readings   Repository
	Logs       audit.Repository
	Backend    Backend
	Thresholds Thresholds
	Logger     Logger
	Listeners  []Listener

	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is the telemetry service: validation, transactional persistence,
// alert evaluation and every read model over the stored data.
type Store struct {
	readings   Repository
	logs       audit.Repository
	backend    Backend
	thresholds Thresholds
	logger     Logger
	listeners  []Listener
	now        func() time.Time
}

// NewStore creates a Store. Zero Thresholds fall back to DefaultThresholds.
func NewStore(deps Deps) *Store {
	s := &Store{
		readings:   deps.Readings,
		logs:       deps.Logs,
		backend:    deps.Backend,
		thresholds: deps.Thresholds,
		logger:     deps.Logger,
		listeners:  deps.Listeners,
		now:        deps.Now,
	}
	if s.thresholds == (Thresholds{}) {
		s.thresholds = DefaultThresholds
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AddListener registers l for future commits. It must be called before the
// store is shared between goroutines.
func (s *Store) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Record validates n, then stores it and any temperature alert atomically.
//
// Returns a *ValidationError before touching storage when n is invalid, or
// an error wrapping ErrStorage when the transaction fails. In the latter
// case neither the reading nor the alert is stored.
func (s *Store) Record(ctx context.Context, n NewReading) (*Reading, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	reading := n.toReading(s.now())
	alert := s.thresholds.EvaluateTemperature(reading)

	if err := s.readings.InsertReading(ctx, &reading, alert); err != nil {
		s.logger.Error("failed to store reading", "sensor_id", reading.SensorID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.logger.Debug("reading stored", "sensor_id", reading.SensorID, "id", reading.ID)
	for _, l := range s.listeners {
		l.ReadingRecorded(reading)
	}

	if alert != nil {
		s.logger.Warn("alert raised",
			"type", alert.Type,
			"sensor_id", alert.SensorID,
			"value", alert.Value,
			"threshold", alert.Threshold,
		)
		for _, l := range s.listeners {
			l.AlertRaised(*alert)
		}
	}

	return &reading, nil
}

// ReadingPage is one page of readings.
type ReadingPage struct {
	Data       []Reading       `json:"data"`
	Pagination pagination.Info `json:"pagination"`
}

// LogPage is one page of device command logs.
type LogPage struct {
	Data       []audit.CommandLog `json:"data"`
	Pagination pagination.Info    `json:"pagination"`
}

// AlertPage is one page of alerts.
type AlertPage struct {
	Data       []Alert         `json:"data"`
	Pagination pagination.Info `json:"pagination"`
}

// Query returns readings matching filter, one page at a time.
func (s *Store) Query(ctx context.Context, filter Filter, page pagination.Request) (*ReadingPage, error) {
	page = page.Normalize(ReadingSortFields...)
	rows, total, err := s.readings.ListReadings(ctx, filter, page)
	if err != nil {
		s.logger.Error("failed to fetch readings", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &ReadingPage{Data: rows, Pagination: pagination.NewInfo(page, total)}, nil
}

// QueryDeviceLogs returns device command logs matching filter.
func (s *Store) QueryDeviceLogs(ctx context.Context, filter audit.Filter, page pagination.Request) (*LogPage, error) {
	page = page.Normalize(audit.SortFields...)
	rows, total, err := s.logs.List(ctx, filter, page)
	if err != nil {
		s.logger.Error("failed to fetch device logs", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &LogPage{Data: rows, Pagination: pagination.NewInfo(page, total)}, nil
}

// QueryAlerts returns alerts matching filter.
func (s *Store) QueryAlerts(ctx context.Context, filter AlertFilter, page pagination.Request) (*AlertPage, error) {
	page = page.Normalize(AlertSortFields...)
	rows, total, err := s.readings.ListAlerts(ctx, filter, page)
	if err != nil {
		s.logger.Error("failed to fetch alerts", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &AlertPage{Data: rows, Pagination: pagination.NewInfo(page, total)}, nil
}

// CommandCount is the number of logged commands of one kind.
type CommandCount struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// Statistics summarises one sensor over a period.
type Statistics struct {
	SensorStats ReadingStats   `json:"sensorStats"`
	DeviceStats []CommandCount `json:"deviceStats"`
	Period      string         `json:"period"`
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
}

// Recognised statistics periods.
var periods = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// DefaultPeriod is used when the requested period is unknown.
const DefaultPeriod = "24h"

// ResolvePeriod maps a period name to its window length. Unknown names
// resolve to DefaultPeriod.
func ResolvePeriod(period string) (string, time.Duration) {
	if d, ok := periods[period]; ok {
		return period, d
	}
	return DefaultPeriod, periods[DefaultPeriod]
}

// Statistics aggregates the sensor's readings over [now-period, now] and
// counts device logs for the same id grouped by command. The command counts
// are not time-bounded.
func (s *Store) Statistics(ctx context.Context, sensorID, period string) (*Statistics, error) {
	name, window := ResolvePeriod(period)
	to := s.now().UTC()
	from := to.Add(-window)

	stats, err := s.readings.ReadingStats(ctx, sensorID, from, to)
	if err != nil {
		s.logger.Error("failed to aggregate readings", "sensor_id", sensorID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	counts, err := s.logs.CountByCommand(ctx, sensorID)
	if err != nil {
		s.logger.Error("failed to count device commands", "device_id", sensorID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	deviceStats := make([]CommandCount, 0, len(counts))
	for cmd, n := range counts {
		deviceStats = append(deviceStats, CommandCount{Command: cmd, Count: n})
	}
	sort.Slice(deviceStats, func(i, j int) bool { return deviceStats[i].Command < deviceStats[j].Command })

	return &Statistics{
		SensorStats: stats,
		DeviceStats: deviceStats,
		Period:      name,
		From:        from,
		To:          to,
	}, nil
}

// PruneResult reports what Prune removed.
type PruneResult struct {
	SensorRecordsDeleted int64     `json:"sensorRecordsDeleted"`
	LogRecordsDeleted    int64     `json:"logRecordsDeleted"`
	CutoffDate           time.Time `json:"cutoffDate"`
}

// Prune deletes readings and device logs with timestamps strictly before
// now minus retentionDays. Alerts are kept. Running it twice with the same
// clock deletes nothing the second time.
func (s *Store) Prune(ctx context.Context, retentionDays int) (*PruneResult, error) {
	if retentionDays < 1 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "days", Message: "must be at least 1"}}}
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	readings, err := s.readings.DeleteReadingsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("data cleanup failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	logs, err := s.logs.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("data cleanup failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.logger.Info("data cleanup completed",
		"sensor_records_deleted", readings,
		"log_records_deleted", logs,
		"cutoff", cutoff,
	)
	return &PruneResult{SensorRecordsDeleted: readings, LogRecordsDeleted: logs, CutoffDate: cutoff}, nil
}

// HealthDetails describes the storage engine.
type HealthDetails struct {
	Dialect  string `json:"dialect"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// Health is the storage health report.
type Health struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details *HealthDetails `json:"details,omitempty"`
}

// Healthy reports whether the status is healthy.
func (h Health) Healthy() bool {
	return h.Status == StatusHealthy
}

// HealthCheck probes the connection and every table. It never returns an
// error; failures are reported in the result.
func (s *Store) HealthCheck(ctx context.Context) Health {
	unhealthy := func(err error) Health {
		s.logger.Error("database health check failed", "error", err)
		return Health{Status: StatusUnhealthy, Message: err.Error()}
	}

	if err := s.backend.HealthCheck(ctx); err != nil {
		return unhealthy(err)
	}
	if err := s.readings.Probe(ctx); err != nil {
		return unhealthy(err)
	}
	if err := s.logs.Probe(ctx); err != nil {
		return unhealthy(err)
	}
	version, err := s.backend.Version(ctx)
	if err != nil {
		return unhealthy(err)
	}

	return Health{
		Status:  StatusHealthy,
		Message: "Database is operational",
		Details: &HealthDetails{
			Dialect:  s.backend.Name(),
			Version:  version,
			Database: s.backend.Location(),
		},
	}
}

// DatabaseSize is the storage footprint.
type DatabaseSize struct {
	Bytes     int64   `json:"bytes"`
	Megabytes float64 `json:"megabytes"`
}

// Metrics holds counts and size for monitoring.
type Metrics struct {
	SensorDataCount     int          `json:"sensorDataCount"`
	DeviceLogCount      int          `json:"deviceLogCount"`
	AlertCount          int          `json:"alertCount"`
	LatestSensorReading *time.Time   `json:"latestSensorReading"`
	OldestSensorReading *time.Time   `json:"oldestSensorReading"`
	DatabaseSize        DatabaseSize `json:"databaseSize"`
}

// Metrics collects table counts, the reading time span and storage size.
// A size probe failure is logged and reported as zero.
func (s *Store) Metrics(ctx context.Context) (*Metrics, error) {
	summary, err := s.readings.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	logs, err := s.logs.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	m := &Metrics{
		SensorDataCount:     summary.ReadingCount,
		DeviceLogCount:      logs,
		AlertCount:          summary.AlertCount,
		LatestSensorReading: summary.LatestReading,
		OldestSensorReading: summary.OldestReading,
	}

	size, err := s.backend.Size(ctx)
	if err != nil {
		s.logger.Warn("could not get database size", "error", err)
		return m, nil
	}
	m.DatabaseSize = DatabaseSize{
		Bytes:     size,
		Megabytes: math.Round(float64(size)/bytesPerMegabyte*100) / 100,
	}
	return m, nil
}
