package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/database"
	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

var (
	readingColumns = map[string]string{
		"timestamp":   "timestamp",
		"id":          "id",
		"sensorId":    "sensor_id",
		"temperature": "temperature",
		"humidity":    "humidity",
	}
	alertColumns = map[string]string{
		"timestamp": "timestamp",
		"id":        "id",
		"severity":  "severity",
		"value":     "value",
	}
)

// SQLiteRepository stores readings in sensor_data and alerts in alert_logs.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// InsertReading stores the reading and optional alert in one transaction.
func (r *SQLiteRepository) InsertReading(ctx context.Context, reading *Reading, alert *Alert) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sensor_data
		   (sensor_id, temperature, humidity, soil_moisture, light_intensity, co2_level, timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.SensorID, reading.Temperature, reading.Humidity,
		reading.SoilMoisture, reading.LightIntensity, reading.CO2Level,
		database.FormatTime(reading.Timestamp), database.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	readingID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading id: %w", err)
	}

	var alertID int64
	if alert != nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO alert_logs
			   (type, sensor_id, device_id, value, threshold, message, severity, acknowledged, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			alert.Type, nullable(alert.SensorID), nullable(alert.DeviceID),
			alert.Value, alert.Threshold, alert.Message, string(alert.Severity),
			database.FormatTime(alert.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("inserting alert: %w", err)
		}
		if alertID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("alert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reading: %w", err)
	}

	reading.ID = readingID
	if alert != nil {
		alert.ID = alertID
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// conditions collects parameterised WHERE fragments.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, arg any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, arg)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.clauses, " AND ")
}

func (c *conditions) timeRange(start, end *time.Time) {
	if start != nil {
		c.add("timestamp >= ?", database.FormatTime(*start))
	}
	if end != nil {
		c.add("timestamp <= ?", database.FormatTime(*end))
	}
}

func readingConditions(f Filter) *conditions {
	c := &conditions{}
	if f.SensorID != "" {
		c.add("sensor_id = ?", f.SensorID)
	}
	c.timeRange(f.StartDate, f.EndDate)
	if f.MinTemperature != nil {
		c.add("temperature >= ?", *f.MinTemperature)
	}
	if f.MaxTemperature != nil {
		c.add("temperature <= ?", *f.MaxTemperature)
	}
	return c
}

// ListReadings returns one page of readings matching the filter.
func (r *SQLiteRepository) ListReadings(ctx context.Context, filter Filter, page pagination.Request) ([]Reading, int, error) {
	page = page.Normalize(ReadingSortFields...)
	c := readingConditions(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_data "+c.where(), c.args...).Scan(&total); err != nil { //nolint:gosec // parameterised
		return nil, 0, fmt.Errorf("counting readings: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // column and direction are whitelisted
		`SELECT id, sensor_id, temperature, humidity, soil_moisture, light_intensity, co2_level, timestamp
		 FROM sensor_data %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		c.where(), readingColumns[page.SortBy], page.SortOrder, page.SortOrder,
	)
	rows, err := r.db.QueryContext(ctx, query, append(c.args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		var rd Reading
		var soil, light, co2 sql.NullFloat64
		var ts string
		if err := rows.Scan(&rd.ID, &rd.SensorID, &rd.Temperature, &rd.Humidity, &soil, &light, &co2, &ts); err != nil {
			return nil, 0, fmt.Errorf("scanning reading: %w", err)
		}
		rd.SoilMoisture = floatPtr(soil)
		rd.LightIntensity = floatPtr(light)
		rd.CO2Level = floatPtr(co2)
		if rd.Timestamp, err = database.ParseTime(ts); err != nil {
			return nil, 0, err
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, total, nil
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// ReadingStats aggregates one sensor's readings with timestamps in [from, to].
func (r *SQLiteRepository) ReadingStats(ctx context.Context, sensorID string, from, to time.Time) (ReadingStats, error) {
	var avgT, minT, maxT, avgH sql.NullFloat64
	var stats ReadingStats

	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(temperature), MIN(temperature), MAX(temperature), AVG(humidity), COUNT(id)
		 FROM sensor_data WHERE sensor_id = ? AND timestamp >= ? AND timestamp <= ?`,
		sensorID, database.FormatTime(from), database.FormatTime(to),
	).Scan(&avgT, &minT, &maxT, &avgH, &stats.ReadingCount)
	if err != nil {
		return ReadingStats{}, fmt.Errorf("aggregating readings: %w", err)
	}

	stats.AvgTemperature = floatPtr(avgT)
	stats.MinTemperature = floatPtr(minT)
	stats.MaxTemperature = floatPtr(maxT)
	stats.AvgHumidity = floatPtr(avgH)
	return stats, nil
}

// DeleteReadingsBefore removes readings older than cutoff.
func (r *SQLiteRepository) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sensor_data WHERE timestamp < ?", database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}
	return res.RowsAffected()
}

func alertConditions(f AlertFilter) *conditions {
	c := &conditions{}
	if f.SensorID != "" {
		c.add("sensor_id = ?", f.SensorID)
	}
	if f.Type != "" {
		c.add("type = ?", f.Type)
	}
	if f.Severity != "" {
		c.add("severity = ?", string(f.Severity))
	}
	if f.Acknowledged != nil {
		c.add("acknowledged = ?", *f.Acknowledged)
	}
	c.timeRange(f.StartDate, f.EndDate)
	return c
}

// ListAlerts returns one page of alerts matching the filter.
func (r *SQLiteRepository) ListAlerts(ctx context.Context, filter AlertFilter, page pagination.Request) ([]Alert, int, error) {
	page = page.Normalize(AlertSortFields...)
	c := alertConditions(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_logs "+c.where(), c.args...).Scan(&total); err != nil { //nolint:gosec // parameterised
		return nil, 0, fmt.Errorf("counting alerts: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // column and direction are whitelisted
		`SELECT id, type, sensor_id, device_id, value, threshold, message, severity,
		        acknowledged, acknowledged_at, acknowledged_by, timestamp
		 FROM alert_logs %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		c.where(), alertColumns[page.SortBy], page.SortOrder, page.SortOrder,
	)
	rows, err := r.db.QueryContext(ctx, query, append(c.args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		var sensorID, deviceID, ackBy, ackAt sql.NullString
		var value, threshold sql.NullFloat64
		var severity, ts string
		if err := rows.Scan(&a.ID, &a.Type, &sensorID, &deviceID, &value, &threshold, &a.Message,
			&severity, &a.Acknowledged, &ackAt, &ackBy, &ts); err != nil {
			return nil, 0, fmt.Errorf("scanning alert: %w", err)
		}
		a.SensorID = sensorID.String
		a.DeviceID = deviceID.String
		a.Value = value.Float64
		a.Threshold = threshold.Float64
		a.Severity = Severity(severity)
		a.AcknowledgedBy = ackBy.String
		if ackAt.Valid {
			t, err := database.ParseTime(ackAt.String)
			if err != nil {
				return nil, 0, err
			}
			a.AcknowledgedAt = &t
		}
		if a.Timestamp, err = database.ParseTime(ts); err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, total, nil
}

// Summary returns table counts and the reading time span.
func (r *SQLiteRepository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	var oldest, latest sql.NullString

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM sensor_data",
	).Scan(&s.ReadingCount, &oldest, &latest)
	if err != nil {
		return Summary{}, fmt.Errorf("summarising readings: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_logs").Scan(&s.AlertCount); err != nil {
		return Summary{}, fmt.Errorf("counting alerts: %w", err)
	}

	for _, pair := range []struct {
		src sql.NullString
		dst **time.Time
	}{{oldest, &s.OldestReading}, {latest, &s.LatestReading}} {
		if !pair.src.Valid {
			continue
		}
		t, err := database.ParseTime(pair.src.String)
		if err != nil {
			return Summary{}, err
		}
		*pair.dst = &t
	}
	return s, nil
}

// Probe runs a trivial read against sensor_data and alert_logs.
func (r *SQLiteRepository) Probe(ctx context.Context) error {
	for _, table := range []string{"sensor_data", "alert_logs"} {
		var n int
		q := "SELECT COUNT(*) FROM (SELECT 1 FROM " + table + " LIMIT 1)"
		if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return fmt.Errorf("probing %s: %w", table, err)
		}
	}
	return nil
}
