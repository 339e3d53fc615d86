package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/database"
	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

// sortColumns maps API sort fields to device_logs columns.
var sortColumns = map[string]string{
	"timestamp": "timestamp",
	"id":        "id",
	"deviceId":  "device_id",
	"command":   "command",
	"status":    "status",
}

// SQLiteRepository stores command logs in the device_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a command log, filling ID and a zero Timestamp.
func (r *SQLiteRepository) Create(ctx context.Context, log *CommandLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO device_logs (device_id, command, topic, status, error_message, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.DeviceID, log.Command, log.Topic, string(log.Status),
		nullableString(log.ErrorMessage),
		database.FormatTime(log.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting device log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device log id: %w", err)
	}
	log.ID = id
	return nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// whereClause builds a parameterised WHERE from the filter.
func whereClause(f Filter) (string, []any) {
	var conditions []string
	var args []any

	if f.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, f.Command)
	}
	if f.StartDate != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, database.FormatTime(*f.StartDate))
	}
	if f.EndDate != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, database.FormatTime(*f.EndDate))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of logs matching the filter.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter, page pagination.Request) ([]CommandLog, int, error) {
	page = page.Normalize(SortFields...)
	where, args := whereClause(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM device_logs " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting device logs: %w", err)
	}

	// Column and direction come from whitelists, never from raw input.
	query := fmt.Sprintf( //nolint:gosec // see above
		`SELECT id, device_id, command, topic, status, error_message, timestamp
		 FROM device_logs %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		where, sortColumns[page.SortBy], page.SortOrder, page.SortOrder,
	)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying device logs: %w", err)
	}
	defer rows.Close()

	logs := []CommandLog{}
	for rows.Next() {
		var log CommandLog
		var status, ts string
		var errMsg sql.NullString
		if err := rows.Scan(&log.ID, &log.DeviceID, &log.Command, &log.Topic, &status, &errMsg, &ts); err != nil {
			return nil, 0, fmt.Errorf("scanning device log: %w", err)
		}
		log.Status = Status(status)
		log.ErrorMessage = errMsg.String
		if log.Timestamp, err = database.ParseTime(ts); err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating device logs: %w", err)
	}

	return logs, total, nil
}

// CountByCommand counts all logs for deviceID grouped by command.
func (r *SQLiteRepository) CountByCommand(ctx context.Context, deviceID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT command, COUNT(*) FROM device_logs WHERE device_id = ? GROUP BY command",
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting device commands: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cmd string
		var n int
		if err := rows.Scan(&cmd, &n); err != nil {
			return nil, fmt.Errorf("scanning command count: %w", err)
		}
		counts[cmd] = n
	}
	return counts, rows.Err()
}

// DeleteBefore removes logs older than cutoff.
func (r *SQLiteRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM device_logs WHERE timestamp < ?", database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting device logs: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored logs.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM device_logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting device logs: %w", err)
	}
	return n, nil
}

// Probe runs a trivial read against device_logs.
func (r *SQLiteRepository) Probe(ctx context.Context) error {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM (SELECT 1 FROM device_logs LIMIT 1)").Scan(&n)
	if err != nil {
		return fmt.Errorf("probing device_logs: %w", err)
	}
	return nil
}
