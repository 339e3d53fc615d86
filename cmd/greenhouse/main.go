// Greenhouse Core - telemetry, alerting and device control for greenhouses.
//
// Sensors report readings over HTTP or MQTT. Readings outside the safe
// temperature band raise alerts. Operators switch actuators (fans, pumps,
// heaters) through the REST API, which relays ON/OFF commands to devices
// over MQTT and audits every attempt.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/greenhouse-iot/greenhouse-core/migrations"

	"github.com/greenhouse-iot/greenhouse-core/internal/api"
	"github.com/greenhouse-iot/greenhouse-core/internal/command"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/config"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/influxdb"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/logging"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/mqtt"
	"github.com/greenhouse-iot/greenhouse-core/internal/ingest"
	"github.com/greenhouse-iot/greenhouse-core/internal/metrics"
	"github.com/greenhouse-iot/greenhouse-core/internal/retention"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled, then tears
// down in reverse construction order through the defer chain.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Greenhouse Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Storage
	backend, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing storage", "backend", backend.name)
		if closeErr := backend.close(); closeErr != nil {
			log.Error("error closing storage", "error", closeErr)
		}
	}()

	store := telemetry.NewStore(telemetry.Deps{
		Readings: backend.readings,
		Logs:     backend.logs,
		Backend:  backend.backend,
		Thresholds: telemetry.Thresholds{
			High: cfg.Alerting.TemperatureHigh,
			Low:  cfg.Alerting.TemperatureLow,
		},
		Logger: log.Component("telemetry"),
	})

	if cfg.DevMode {
		if seedErr := store.SeedSampleData(ctx, cfg.MQTT.TopicPrefix); seedErr != nil {
			log.Warn("sample data seeding failed", "error", seedErr)
		}
	}

	// Transport
	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	dispatcher := command.NewDispatcher(command.Deps{
		Publisher: mqttClient,
		Logs:      backend.logs,
		Topics:    mqttClient.Topics(),
		Logger:    log.Component("command"),
	})

	ingester := ingest.New(ingest.Deps{
		Subscriber: mqttClient,
		Recorder:   store,
		Topics:     mqttClient.Topics(),
		QoS:        byte(cfg.MQTT.QoS),
		Logger:     log.Component("ingest"),
	})
	mqttClient.SetOnConnect(func() {
		if startErr := ingester.Start(ctx); startErr != nil {
			log.Warn("sensor ingest subscription failed", "error", startErr)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected, device commands will fail until reconnected", "error", err)
	})

	// Observability
	registry := metrics.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if err := registry.Register(metrics.NewStorageCollector(store)); err != nil {
		return fmt.Errorf("registering storage metrics: %w", err)
	}
	if err := metrics.RegisterConnectivity(registry, mqttClient.IsConnected); err != nil {
		return fmt.Errorf("registering connectivity metrics: %w", err)
	}
	if backend.sqlDB != nil {
		if err := metrics.RegisterDBStats(registry, backend.sqlDB); err != nil {
			return fmt.Errorf("registering database pool metrics: %w", err)
		}
	}
	store.AddListener(recorder)
	dispatcher.AddListener(recorder)

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		mirror := &influxMirror{client: influxClient}
		store.AddListener(mirror)
		dispatcher.AddListener(mirror)
	}

	// API
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics.Handler(registry),
		DevMode:    cfg.DevMode,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	store.AddListener(server.Hub())
	dispatcher.AddListener(server.Hub())

	// Listeners are all registered; from here on the store and dispatcher
	// are shared with the ingest and HTTP goroutines.
	//
	// Connect does not block; paho keeps retrying in the background and the
	// API serves reads meanwhile.
	mqttClient.Connect()
	log.Info("MQTT connecting",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Retention
	if cfg.Retention.Enabled {
		scheduler := retention.NewScheduler(retention.Config{
			Days:     cfg.Retention.Days,
			Interval: cfg.RetentionInterval(),
		}, store, log.Component("retention"))
		scheduler.Start(ctx)
		defer scheduler.Stop()
		log.Info("retention scheduler started",
			"days", cfg.Retention.Days,
			"interval", cfg.RetentionInterval(),
		)
	}

	if health := store.HealthCheck(ctx); !health.Healthy() {
		return fmt.Errorf("storage health check failed: %s", health.Message)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: retention, API, InfluxDB, MQTT, storage.
	return nil
}

// loadConfig reads the file named by GREENHOUSE_CONFIG (or the default
// path). A missing default file falls back to built-in defaults; a missing
// explicitly named file is an error.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	path, explicit := getConfigPath()
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		log.Info("configuration loaded", "path", path)
		return cfg, nil
	case !explicit && errors.Is(err, os.ErrNotExist):
		log.Warn("config file not found, using defaults", "path", path)
		cfg = config.Default()
		if validateErr := cfg.Validate(); validateErr != nil {
			return nil, fmt.Errorf("validating default config: %w", validateErr)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}
}

// getConfigPath returns the configuration file path and whether it was set
// through GREENHOUSE_CONFIG.
func getConfigPath() (string, bool) {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// connectInflux returns nil when the mirror is disabled.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}
