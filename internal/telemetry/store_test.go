package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/database"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/logging"
	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
	_ "github.com/greenhouse-iot/greenhouse-core/migrations"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingListener captures notifications.
type recordingListener struct {
	readings []Reading
	alerts   []Alert
}

func (l *recordingListener) ReadingRecorded(r Reading) { l.readings = append(l.readings, r) }
func (l *recordingListener) AlertRaised(a Alert)       { l.alerts = append(l.alerts, a) }

type testEnv struct {
	store    *Store
	db       *database.DB
	logs     *audit.SQLiteRepository
	listener *recordingListener
}

// newTestEnv opens a migrated in-memory database and a Store over it with
// the clock fixed at testNow.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	env := &testEnv{
		db:       db,
		logs:     audit.NewSQLiteRepository(db.DB),
		listener: &recordingListener{},
	}
	env.store = NewStore(Deps{
		Readings:  NewSQLiteRepository(db.DB),
		Logs:      env.logs,
		Backend:   db,
		Logger:    logging.Discard(),
		Listeners: []Listener{env.listener},
		Now:       func() time.Time { return testNow },
	})
	return env
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func (e *testEnv) record(t *testing.T, sensorID string, temp float64, at time.Time) *Reading {
	t.Helper()
	r, err := e.store.Record(context.Background(), NewReading{
		SensorID: sensorID, Temperature: f64(temp), Humidity: f64(50), Timestamp: at,
	})
	if err != nil {
		t.Fatalf("Record(%s, %v) error = %v", sensorID, temp, err)
	}
	return r
}

func TestStore_RecordWithoutAlert(t *testing.T) {
	env := newTestEnv(t)

	r := env.record(t, "s1", 22.5, time.Time{})
	if r.ID == 0 {
		t.Error("ID should be assigned")
	}
	if !r.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want %v", r.Timestamp, testNow)
	}
	if got := env.count(t, "sensor_data"); got != 1 {
		t.Errorf("sensor_data rows = %d, want 1", got)
	}
	if got := env.count(t, "alert_logs"); got != 0 {
		t.Errorf("alert_logs rows = %d, want 0", got)
	}
	if len(env.listener.readings) != 1 || len(env.listener.alerts) != 0 {
		t.Errorf("listener readings=%d alerts=%d, want 1/0", len(env.listener.readings), len(env.listener.alerts))
	}
}

func TestStore_RecordRaisesAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.record(t, "s1", 40, time.Time{})

	page, err := env.store.QueryAlerts(ctx, AlertFilter{}, pagination.Request{})
	if err != nil {
		t.Fatalf("QueryAlerts() error = %v", err)
	}
	if len(page.Data) != 1 {
		t.Fatalf("alerts = %d, want 1", len(page.Data))
	}
	a := page.Data[0]
	if a.Type != AlertTypeTemperature || a.Threshold != 35 || a.Value != 40 || a.SensorID != "s1" {
		t.Errorf("alert = %+v", a)
	}
	if a.Severity != SeverityWarning || a.Acknowledged {
		t.Errorf("severity=%s acknowledged=%v, want WARNING/false", a.Severity, a.Acknowledged)
	}
	if len(env.listener.alerts) != 1 || env.listener.alerts[0].ID != a.ID {
		t.Errorf("listener alerts = %+v", env.listener.alerts)
	}
}

func TestStore_RecordBoundaryValuesDoNotAlert(t *testing.T) {
	env := newTestEnv(t)

	env.record(t, "s1", 35, time.Time{})
	env.record(t, "s1", 5, time.Time{})

	if got := env.count(t, "alert_logs"); got != 0 {
		t.Errorf("alert_logs rows = %d, want 0", got)
	}
}

func TestStore_RecordValidationWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.store.Record(context.Background(), NewReading{SensorID: "s1", Temperature: f64(150)})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Record() error = %v, want *ValidationError", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("fields = %+v, want temperature and humidity", verr.Fields)
	}
	if got := env.count(t, "sensor_data"); got != 0 {
		t.Errorf("sensor_data rows = %d, want 0", got)
	}
	if len(env.listener.readings) != 0 {
		t.Error("listener should not be notified")
	}
}

func TestStore_RecordIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Break the alert insert; the reading insert must roll back with it.
	if _, err := env.db.Exec("DROP TABLE alert_logs"); err != nil {
		t.Fatal(err)
	}

	_, err := env.store.Record(ctx, NewReading{SensorID: "s1", Temperature: f64(40), Humidity: f64(50)})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Record() error = %v, want ErrStorage", err)
	}
	if got := env.count(t, "sensor_data"); got != 0 {
		t.Errorf("sensor_data rows = %d, want 0 after rollback", got)
	}
	if len(env.listener.readings) != 0 {
		t.Error("listener should not see a rolled-back reading")
	}

	// A reading that needs no alert still goes through.
	if _, err := env.store.Record(ctx, NewReading{SensorID: "s1", Temperature: f64(20), Humidity: f64(50)}); err != nil {
		t.Errorf("Record() without alert error = %v", err)
	}
}

func TestStore_Query(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := range 12 {
		sensor := "s1"
		if i%3 == 0 {
			sensor = "s2"
		}
		env.record(t, sensor, float64(10+i), testNow.Add(-time.Duration(i)*time.Hour))
	}

	start := testNow.Add(-5 * time.Hour)
	end := testNow.Add(-2 * time.Hour)
	minT, maxT := 13.0, 20.0

	tests := []struct {
		name      string
		filter    Filter
		page      pagination.Request
		wantTotal int
		wantLen   int
	}{
		{"all default page", Filter{}, pagination.Request{}, 12, 12},
		{"sensor", Filter{SensorID: "s2"}, pagination.Request{}, 4, 4},
		{"date range inclusive", Filter{StartDate: &start, EndDate: &end}, pagination.Request{}, 4, 4},
		{"temperature range", Filter{MinTemperature: &minT, MaxTemperature: &maxT}, pagination.Request{}, 8, 8},
		{"combined", Filter{SensorID: "s1", MinTemperature: &minT, EndDate: &end}, pagination.Request{}, 6, 6},
		{"second page", Filter{}, pagination.Request{Page: 2, Limit: 5}, 12, 5},
		{"last partial page", Filter{}, pagination.Request{Page: 3, Limit: 5}, 12, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.store.Query(ctx, tt.filter, tt.page)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if page.Pagination.TotalItems != tt.wantTotal || len(page.Data) != tt.wantLen {
				t.Errorf("total=%d len=%d, want %d/%d", page.Pagination.TotalItems, len(page.Data), tt.wantTotal, tt.wantLen)
			}
		})
	}

	page, err := env.store.Query(ctx, Filter{}, pagination.Request{Page: 2, Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	want := pagination.Info{Page: 2, Limit: 5, TotalItems: 12, TotalPages: 3, HasNext: true, HasPrevious: true}
	if page.Pagination != want {
		t.Errorf("Pagination = %+v, want %+v", page.Pagination, want)
	}
	// Newest first by default: page 2 starts with the reading 5 hours old.
	if !page.Data[0].Timestamp.Equal(testNow.Add(-5 * time.Hour)) {
		t.Errorf("first row timestamp = %v", page.Data[0].Timestamp)
	}

	asc, err := env.store.Query(ctx, Filter{}, pagination.Request{SortBy: "temperature", SortOrder: pagination.Asc, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if asc.Data[0].Temperature != 10 {
		t.Errorf("lowest temperature = %v, want 10", asc.Data[0].Temperature)
	}
}

func TestStore_QueryOptionalFieldsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.store.Record(ctx, NewReading{
		SensorID: "s1", Temperature: f64(20), Humidity: f64(50), SoilMoisture: f64(33.5), CO2Level: f64(415),
	}); err != nil {
		t.Fatal(err)
	}

	page, err := env.store.Query(ctx, Filter{}, pagination.Request{})
	if err != nil {
		t.Fatal(err)
	}
	r := page.Data[0]
	if r.SoilMoisture == nil || *r.SoilMoisture != 33.5 {
		t.Errorf("SoilMoisture = %v, want 33.5", r.SoilMoisture)
	}
	if r.LightIntensity != nil {
		t.Errorf("LightIntensity = %v, want nil", *r.LightIntensity)
	}
	if r.CO2Level == nil || *r.CO2Level != 415 {
		t.Errorf("CO2Level = %v, want 415", r.CO2Level)
	}
}

func TestStore_QueryDeviceLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, status := range []audit.Status{audit.StatusSuccess, audit.StatusFailed, audit.StatusSuccess} {
		if err := env.logs.Create(ctx, &audit.CommandLog{
			DeviceID: "fan_1", Command: "ON", Topic: "greenhouse/control/fan_1",
			Status: status, Timestamp: testNow.Add(-time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := env.store.QueryDeviceLogs(ctx, audit.Filter{Status: audit.StatusSuccess}, pagination.Request{Limit: 1})
	if err != nil {
		t.Fatalf("QueryDeviceLogs() error = %v", err)
	}
	want := pagination.Info{Page: 1, Limit: 1, TotalItems: 2, TotalPages: 2, HasNext: true}
	if page.Pagination != want {
		t.Errorf("Pagination = %+v, want %+v", page.Pagination, want)
	}
}

func TestStore_Statistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.record(t, "s1", 20, testNow.Add(-30*time.Minute))
	env.record(t, "s1", 30, testNow.Add(-2*time.Hour))
	env.record(t, "s1", 10, testNow.Add(-3*24*time.Hour))
	env.record(t, "s2", 50, testNow.Add(-10*time.Minute))

	for _, cmd := range []string{"ON", "OFF", "ON"} {
		if err := env.logs.Create(ctx, &audit.CommandLog{DeviceID: "s1", Command: cmd, Topic: "t", Status: audit.StatusSuccess}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		period     string
		wantPeriod string
		wantCount  int
		wantAvg    float64
	}{
		{"1h", "1h", 1, 20},
		{"24h", "24h", 2, 25},
		{"7d", "7d", 3, 20},
		{"bogus", "24h", 2, 25},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			stats, err := env.store.Statistics(ctx, "s1", tt.period)
			if err != nil {
				t.Fatalf("Statistics() error = %v", err)
			}
			if stats.Period != tt.wantPeriod {
				t.Errorf("Period = %q, want %q", stats.Period, tt.wantPeriod)
			}
			if stats.SensorStats.ReadingCount != tt.wantCount {
				t.Errorf("ReadingCount = %d, want %d", stats.SensorStats.ReadingCount, tt.wantCount)
			}
			if stats.SensorStats.AvgTemperature == nil || *stats.SensorStats.AvgTemperature != tt.wantAvg {
				t.Errorf("AvgTemperature = %v, want %v", stats.SensorStats.AvgTemperature, tt.wantAvg)
			}
			if !stats.To.Equal(testNow) {
				t.Errorf("To = %v, want %v", stats.To, testNow)
			}
			want := []CommandCount{{"OFF", 1}, {"ON", 2}}
			if len(stats.DeviceStats) != 2 || stats.DeviceStats[0] != want[0] || stats.DeviceStats[1] != want[1] {
				t.Errorf("DeviceStats = %+v, want %+v", stats.DeviceStats, want)
			}
		})
	}

	empty, err := env.store.Statistics(ctx, "nobody", "1h")
	if err != nil {
		t.Fatal(err)
	}
	if empty.SensorStats.ReadingCount != 0 || empty.SensorStats.AvgTemperature != nil {
		t.Errorf("empty stats = %+v", empty.SensorStats)
	}
	if !empty.From.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("From = %v", empty.From)
	}
}

func TestStore_Prune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.record(t, "s1", 20, testNow.Add(-100*24*time.Hour))
	env.record(t, "s1", 40, testNow.Add(-91*24*time.Hour))
	env.record(t, "s1", 20, testNow.Add(-24*time.Hour))
	if err := env.logs.Create(ctx, &audit.CommandLog{
		DeviceID: "fan_1", Command: "ON", Topic: "t", Status: audit.StatusSuccess,
		Timestamp: testNow.Add(-95 * 24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	res, err := env.store.Prune(ctx, 90)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.SensorRecordsDeleted != 2 || res.LogRecordsDeleted != 1 {
		t.Errorf("Prune() = %+v, want 2 readings and 1 log", res)
	}
	if want := testNow.AddDate(0, 0, -90); !res.CutoffDate.Equal(want) {
		t.Errorf("CutoffDate = %v, want %v", res.CutoffDate, want)
	}
	if got := env.count(t, "alert_logs"); got != 1 {
		t.Errorf("alert_logs rows = %d, alerts are not pruned", got)
	}

	again, err := env.store.Prune(ctx, 90)
	if err != nil {
		t.Fatal(err)
	}
	if again.SensorRecordsDeleted != 0 || again.LogRecordsDeleted != 0 {
		t.Errorf("second Prune() = %+v, want nothing deleted", again)
	}

	var verr *ValidationError
	if _, err := env.store.Prune(ctx, 0); !errors.As(err, &verr) {
		t.Errorf("Prune(0) error = %v, want *ValidationError", err)
	}
}

func TestStore_HealthCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	h := env.store.HealthCheck(ctx)
	if !h.Healthy() {
		t.Fatalf("HealthCheck() = %+v, want healthy", h)
	}
	if h.Details == nil || h.Details.Dialect != "sqlite" || h.Details.Version == "" || h.Details.Database != ":memory:" {
		t.Errorf("Details = %+v", h.Details)
	}

	if _, err := env.db.Exec("DROP TABLE device_logs"); err != nil {
		t.Fatal(err)
	}
	h = env.store.HealthCheck(ctx)
	if h.Healthy() || h.Message == "" || h.Details != nil {
		t.Errorf("HealthCheck() after drop = %+v, want unhealthy with message", h)
	}
}

func TestStore_Metrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, err := env.store.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if m.SensorDataCount != 0 || m.LatestSensorReading != nil || m.OldestSensorReading != nil {
		t.Errorf("empty Metrics() = %+v", m)
	}

	env.record(t, "s1", 40, testNow.Add(-time.Hour))
	env.record(t, "s1", 20, testNow)
	if err := env.logs.Create(ctx, &audit.CommandLog{DeviceID: "fan_1", Command: "ON", Topic: "t", Status: audit.StatusSuccess}); err != nil {
		t.Fatal(err)
	}

	m, err = env.store.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if m.SensorDataCount != 2 || m.DeviceLogCount != 1 || m.AlertCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", m.SensorDataCount, m.DeviceLogCount, m.AlertCount)
	}
	if m.OldestSensorReading == nil || !m.OldestSensorReading.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("OldestSensorReading = %v", m.OldestSensorReading)
	}
	if m.LatestSensorReading == nil || !m.LatestSensorReading.Equal(testNow) {
		t.Errorf("LatestSensorReading = %v", m.LatestSensorReading)
	}
	if m.DatabaseSize.Bytes <= 0 {
		t.Errorf("DatabaseSize.Bytes = %d, want > 0", m.DatabaseSize.Bytes)
	}
}

func TestStore_SeedSampleData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.SeedSampleData(ctx, "greenhouse/control/"); err != nil {
		t.Fatalf("SeedSampleData() error = %v", err)
	}
	if err := env.store.SeedSampleData(ctx, "greenhouse/control/"); err != nil {
		t.Fatalf("second SeedSampleData() error = %v", err)
	}

	if got := env.count(t, "sensor_data"); got != 2 {
		t.Errorf("sensor_data rows = %d, want 2", got)
	}
	page, err := env.store.QueryDeviceLogs(ctx, audit.Filter{DeviceID: "fan_1"}, pagination.Request{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].Topic != "greenhouse/control/fan_1" {
		t.Errorf("seeded fan_1 logs = %+v", page.Data)
	}
}

func TestNewStore_DefaultThresholds(t *testing.T) {
	s := NewStore(Deps{Logger: logging.Discard()})
	if s.thresholds != DefaultThresholds {
		t.Errorf("thresholds = %+v, want defaults", s.thresholds)
	}
	if s.now == nil {
		t.Error("now should default to time.Now")
	}
}
