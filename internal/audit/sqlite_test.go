package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

// setupTestDB creates an in-memory SQLite database with the device_logs table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE device_logs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id     TEXT NOT NULL,
			command       TEXT NOT NULL CHECK (command IN ('ON', 'OFF')),
			topic         TEXT NOT NULL,
			status        TEXT NOT NULL CHECK (status IN ('SUCCESS', 'FAILED')),
			error_message TEXT,
			timestamp     TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedLogs inserts n alternating logs for fan_1 and pump_1, one minute apart.
func seedLogs(t *testing.T, repo *SQLiteRepository, n int) {
	t.Helper()
	ctx := context.Background()
	for i := range n {
		log := &CommandLog{
			DeviceID:  "fan_1",
			Command:   "ON",
			Topic:     "greenhouse/control/fan_1",
			Status:    StatusSuccess,
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 1 {
			log.DeviceID = "pump_1"
			log.Command = "OFF"
			log.Topic = "greenhouse/control/pump_1"
			log.Status = StatusFailed
			log.ErrorMessage = "mqtt: not connected"
		}
		if err := repo.Create(ctx, log); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
}

func TestSQLiteRepository_Create(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	log := &CommandLog{DeviceID: "fan_1", Command: "ON", Topic: "greenhouse/control/fan_1", Status: StatusSuccess}
	if err := repo.Create(ctx, log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if log.ID != 1 {
		t.Errorf("ID = %d, want 1", log.ID)
	}
	if log.Timestamp.IsZero() {
		t.Error("Timestamp should be filled")
	}

	logs, total, err := repo.List(ctx, Filter{}, pagination.Request{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(logs))
	}
	if logs[0].ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", logs[0].ErrorMessage)
	}
	if !logs[0].Timestamp.Equal(log.Timestamp.Truncate(time.Microsecond)) {
		t.Errorf("Timestamp = %v, want %v", logs[0].Timestamp, log.Timestamp)
	}
}

func TestSQLiteRepository_CreateRejectsUnknownCommand(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Create(context.Background(), &CommandLog{DeviceID: "fan_1", Command: "TOGGLE", Topic: "t", Status: StatusSuccess})
	if err == nil {
		t.Fatal("Create() with unknown command should fail")
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	seedLogs(t, repo, 10)
	ctx := context.Background()

	start := baseTime.Add(4 * time.Minute)
	end := baseTime.Add(7 * time.Minute)

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{"no filter", Filter{}, 10},
		{"device", Filter{DeviceID: "fan_1"}, 5},
		{"status", Filter{Status: StatusFailed}, 5},
		{"command", Filter{Command: "OFF"}, 5},
		{"date range inclusive", Filter{StartDate: &start, EndDate: &end}, 4},
		{"combined", Filter{DeviceID: "pump_1", StartDate: &start, EndDate: &end}, 2},
		{"no match", Filter{DeviceID: "heater_9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, total, err := repo.List(ctx, tt.filter, pagination.Request{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.wantTotal || len(logs) != tt.wantTotal {
				t.Errorf("total=%d len=%d, want %d", total, len(logs), tt.wantTotal)
			}
			if logs == nil {
				t.Error("List() should return an empty slice, not nil")
			}
		})
	}
}

func TestSQLiteRepository_ListPaginationAndSort(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	seedLogs(t, repo, 25)
	ctx := context.Background()

	logs, total, err := repo.List(ctx, Filter{}, pagination.Request{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 25 || len(logs) != 5 {
		t.Fatalf("total=%d len=%d, want 25/5", total, len(logs))
	}
	// Default order is newest first, so page 3 holds the oldest five.
	if !logs[4].Timestamp.Equal(baseTime) {
		t.Errorf("last row timestamp = %v, want %v", logs[4].Timestamp, baseTime)
	}

	asc, _, err := repo.List(ctx, Filter{}, pagination.Request{Page: 1, Limit: 3, SortOrder: pagination.Asc})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := 1; i < len(asc); i++ {
		if asc[i].Timestamp.Before(asc[i-1].Timestamp) {
			t.Errorf("ascending order violated at %d", i)
		}
	}

	byDevice, _, err := repo.List(ctx, Filter{}, pagination.Request{Limit: 25, SortBy: "deviceId", SortOrder: pagination.Asc})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if byDevice[0].DeviceID != "fan_1" || byDevice[24].DeviceID != "pump_1" {
		t.Errorf("sort by deviceId: first=%s last=%s", byDevice[0].DeviceID, byDevice[24].DeviceID)
	}
}

func TestSQLiteRepository_CountByCommand(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	seedLogs(t, repo, 6)
	ctx := context.Background()

	if err := repo.Create(ctx, &CommandLog{DeviceID: "fan_1", Command: "OFF", Topic: "t", Status: StatusSuccess}); err != nil {
		t.Fatal(err)
	}

	counts, err := repo.CountByCommand(ctx, "fan_1")
	if err != nil {
		t.Fatalf("CountByCommand() error = %v", err)
	}
	if counts["ON"] != 3 || counts["OFF"] != 1 {
		t.Errorf("counts = %v, want ON:3 OFF:1", counts)
	}

	empty, err := repo.CountByCommand(ctx, "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("counts for unknown device = %v, want empty", empty)
	}
}

func TestSQLiteRepository_DeleteBefore(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	seedLogs(t, repo, 10)
	ctx := context.Background()

	cutoff := baseTime.Add(4 * time.Minute)
	deleted, err := repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}

	// A second pass with the same cutoff deletes nothing.
	deleted, err = repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Errorf("second delete = %d, want 0", deleted)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("Count() = %d, want 6", n)
	}
}

func TestSQLiteRepository_Probe(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Probe(ctx); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if _, err := db.Exec("DROP TABLE device_logs"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Probe(ctx); err == nil {
		t.Error("Probe() should fail without the table")
	}
}
