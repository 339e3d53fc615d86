// Package metrics exposes greenhouse activity and storage figures in the
// Prometheus text format.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

const namespace = "greenhouse"

// scrapeTimeout bounds the storage queries run per scrape.
const scrapeTimeout = 5 * time.Second

// NewRegistry returns a registry with the Go runtime and process
// collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg on /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RegisterDBStats exposes database/sql pool statistics for the SQLite
// backend.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB) error {
	return reg.Register(collectors.NewDBStatsCollector(db, "sqlite"))
}

// RegisterConnectivity exposes a 0/1 gauge for the broker connection.
func RegisterConnectivity(reg prometheus.Registerer, connected func() bool) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mqtt",
		Name:      "connected",
		Help:      "Whether the MQTT broker connection is up.",
	}, func() float64 {
		if connected() {
			return 1
		}
		return 0
	}))
}

// Recorder counts events as they happen. It implements telemetry.Listener
// and command.Listener.
type Recorder struct {
	readings *prometheus.CounterVec
	alerts   *prometheus.CounterVec
	commands *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its counters on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_recorded_total",
			Help:      "Sensor readings stored, by sensor.",
		}, []string{"sensor_id"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts raised, by type and severity.",
		}, []string{"type", "severity"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Device command dispatch attempts, by command and outcome.",
		}, []string{"command", "status"}),
	}

	for _, c := range []prometheus.Collector{r.readings, r.alerts, r.commands} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ReadingRecorded counts a stored reading.
func (r *Recorder) ReadingRecorded(reading telemetry.Reading) {
	r.readings.WithLabelValues(reading.SensorID).Inc()
}

// AlertRaised counts a stored alert.
func (r *Recorder) AlertRaised(a telemetry.Alert) {
	r.alerts.WithLabelValues(a.Type, string(a.Severity)).Inc()
}

// CommandDispatched counts a dispatch attempt.
func (r *Recorder) CommandDispatched(log audit.CommandLog) {
	r.commands.WithLabelValues(log.Command, string(log.Status)).Inc()
}

// StorageSource reports storage figures. *telemetry.Store satisfies it.
type StorageSource interface {
	Metrics(ctx context.Context) (*telemetry.Metrics, error)
}

// StorageCollector queries the store on every scrape.
type StorageCollector struct {
	source StorageSource

	rows       *prometheus.Desc
	sizeBytes  *prometheus.Desc
	latest     *prometheus.Desc
	scrapeFail *prometheus.Desc
}

// NewStorageCollector creates a collector over source.
func NewStorageCollector(source StorageSource) *StorageCollector {
	return &StorageCollector{
		source: source,
		rows: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "rows"),
			"Rows (or documents) currently stored, by table.",
			[]string{"table"}, nil,
		),
		sizeBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "size_bytes"),
			"Storage footprint in bytes.",
			nil, nil,
		),
		latest: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "latest_reading_timestamp_seconds"),
			"Unix time of the newest stored reading.",
			nil, nil,
		),
		scrapeFail: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "scrape_error"),
			"1 if the last storage query failed.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StorageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rows
	ch <- c.sizeBytes
	ch <- c.latest
	ch <- c.scrapeFail
}

// Collect implements prometheus.Collector.
func (c *StorageCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	m, err := c.source.Metrics(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.scrapeFail, prometheus.GaugeValue, 1)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeFail, prometheus.GaugeValue, 0)

	ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(m.SensorDataCount), "sensor_data")
	ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(m.DeviceLogCount), "device_logs")
	ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(m.AlertCount), "alert_logs")
	ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(m.DatabaseSize.Bytes))
	if m.LatestSensorReading != nil {
		ch <- prometheus.MustNewConstMetric(c.latest, prometheus.GaugeValue, float64(m.LatestSensorReading.Unix()))
	}
}
