package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends selectable at startup.
const (
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
)

// Config is the root configuration structure for Greenhouse Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`

	// DevMode seeds sample readings and command logs into empty tables.
	DevMode bool `yaml:"dev_mode"`
}

// SiteConfig identifies the greenhouse this instance serves.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains storage settings.
//
// Backend is chosen once at startup. There is no runtime failover between
// backends: a failed bring-up is fatal.
type DatabaseConfig struct {
	Backend     string        `yaml:"backend"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Connect     ConnectConfig `yaml:"connect"`
}

// ConnectConfig bounds storage bring-up retries.
type ConnectConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	Delay       int `yaml:"delay"` // seconds
}

// MongoDBConfig contains MongoDB settings, used when database.backend is "mongodb".
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Interval is a fixed backoff in seconds between connection attempts.
type MQTTReconnectConfig struct {
	Interval int `yaml:"interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// AlertingConfig contains the temperature safety band.
// Readings strictly above High or strictly below Low raise an alert.
type AlertingConfig struct {
	TemperatureHigh float64 `yaml:"temperature_high"`
	TemperatureLow  float64 `yaml:"temperature_low"`
}

// RetentionConfig controls scheduled pruning of old readings and command logs.
type RetentionConfig struct {
	Enabled  bool `yaml:"enabled"`
	Days     int  `yaml:"days"`
	Interval int  `yaml:"interval"` // hours
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GREENHOUSE_SECTION_KEY
// For example: GREENHOUSE_DATABASE_PATH, GREENHOUSE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// It is used when no config file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "greenhouse-001",
			Name:     "Greenhouse",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Backend:     BackendSQLite,
			Path:        "./data/greenhouse.db",
			WALMode:     true,
			BusyTimeout: 5,
			Connect: ConnectConfig{
				MaxAttempts: 3,
				Delay:       5,
			},
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "greenhouse_iot",
			Timeout:  10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "greenhouse-backend",
			},
			QoS:         1,
			TopicPrefix: "greenhouse",
			Reconnect: MQTTReconnectConfig{
				Interval: 1,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Alerting: AlertingConfig{
			TemperatureHigh: 35,
			TemperatureLow:  5,
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Days:     90,
			Interval: 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GREENHOUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GREENHOUSE_DATABASE_BACKEND"); v != "" {
		cfg.Database.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("GREENHOUSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GREENHOUSE_MONGODB_URI"); v != "" {
		cfg.MongoDB.URI = v
	}

	// MQTT
	if v := os.Getenv("GREENHOUSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GREENHOUSE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GREENHOUSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GREENHOUSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GREENHOUSE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GREENHOUSE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GREENHOUSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GREENHOUSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	switch c.Database.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required")
		}
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			errs = append(errs, "mongodb.uri is required")
		}
		if c.MongoDB.Database == "" {
			errs = append(errs, "mongodb.database is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.backend must be %q or %q", BackendSQLite, BackendMongoDB))
	}
	if c.Database.Connect.MaxAttempts < 1 {
		errs = append(errs, "database.connect.max_attempts must be at least 1")
	}
	if c.Database.Connect.Delay < 0 {
		errs = append(errs, "database.connect.delay cannot be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Interval < 1 {
		errs = append(errs, "mqtt.reconnect.interval must be at least 1 second")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Alerting.TemperatureLow >= c.Alerting.TemperatureHigh {
		errs = append(errs, "alerting.temperature_low must be below alerting.temperature_high")
	}

	if c.Retention.Enabled {
		if c.Retention.Days < 1 {
			errs = append(errs, "retention.days must be at least 1")
		}
		if c.Retention.Interval < 1 {
			errs = append(errs, "retention.interval must be at least 1 hour")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ConnectDelay returns the storage bring-up retry delay as a Duration.
func (c *Config) ConnectDelay() time.Duration {
	return time.Duration(c.Database.Connect.Delay) * time.Second
}

// RetentionInterval returns the pruning interval as a Duration.
func (c *Config) RetentionInterval() time.Duration {
	return time.Duration(c.Retention.Interval) * time.Hour
}
