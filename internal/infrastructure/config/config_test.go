package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  backend: "sqlite"
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_prefix: "gh"
api:
  host: "0.0.0.0"
  port: 8080
alerting:
  temperature_high: 30
  temperature_low: 8
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.TopicPrefix != "gh" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "gh")
	}
	if cfg.Alerting.TemperatureHigh != 30 || cfg.Alerting.TemperatureLow != 8 {
		t.Errorf("Alerting = %+v, want high 30 low 8", cfg.Alerting)
	}
	// Unset sections keep their defaults.
	if cfg.Retention.Days != 90 {
		t.Errorf("Retention.Days = %d, want 90", cfg.Retention.Days)
	}
	if cfg.Database.Connect.MaxAttempts != 3 {
		t.Errorf("Database.Connect.MaxAttempts = %d, want 3", cfg.Database.Connect.MaxAttempts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Database.Backend = "postgres" },
			wantErr: "database.backend",
		},
		{
			name: "mongodb without uri",
			mutate: func(c *Config) {
				c.Database.Backend = BackendMongoDB
				c.MongoDB.URI = ""
			},
			wantErr: "mongodb.uri",
		},
		{
			name: "mongodb ignores sqlite path",
			mutate: func(c *Config) {
				c.Database.Backend = BackendMongoDB
				c.Database.Path = ""
			},
		},
		{
			name:    "zero connect attempts",
			mutate:  func(c *Config) { c.Database.Connect.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "zero reconnect interval",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Interval = 0 },
			wantErr: "mqtt.reconnect.interval",
		},
		{
			name:    "empty topic prefix",
			mutate:  func(c *Config) { c.MQTT.TopicPrefix = "" },
			wantErr: "mqtt.topic_prefix",
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "inverted temperature band",
			mutate: func(c *Config) {
				c.Alerting.TemperatureLow = 40
				c.Alerting.TemperatureHigh = 35
			},
			wantErr: "alerting.temperature_low",
		},
		{
			name:    "retention days zero",
			mutate:  func(c *Config) { c.Retention.Days = 0 },
			wantErr: "retention.days",
		},
		{
			name: "retention disabled skips checks",
			mutate: func(c *Config) {
				c.Retention.Enabled = false
				c.Retention.Days = 0
			},
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want mention of %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"site.id", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Database:  DatabaseConfig{Connect: ConnectConfig{Delay: 5}},
		Retention: RetentionConfig{Interval: 24},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
	if got := cfg.ConnectDelay(); got != 5*time.Second {
		t.Errorf("ConnectDelay() = %v, want 5s", got)
	}
	if got := cfg.RetentionInterval(); got != 24*time.Hour {
		t.Errorf("RetentionInterval() = %v, want 24h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GREENHOUSE_DATABASE_BACKEND", "MongoDB")
	t.Setenv("GREENHOUSE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GREENHOUSE_MONGODB_URI", "mongodb://db:27017")
	t.Setenv("GREENHOUSE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GREENHOUSE_MQTT_PORT", "8883")
	t.Setenv("GREENHOUSE_MQTT_USERNAME", "testuser")
	t.Setenv("GREENHOUSE_MQTT_PASSWORD", "testpass")
	t.Setenv("GREENHOUSE_API_HOST", "192.168.1.1")
	t.Setenv("GREENHOUSE_API_PORT", "9000")
	t.Setenv("GREENHOUSE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GREENHOUSE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Backend != BackendMongoDB {
		t.Errorf("Database.Backend = %q, want %q", cfg.Database.Backend, BackendMongoDB)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MongoDB.URI != "mongodb://db:27017" {
		t.Errorf("MongoDB.URI = %q", cfg.MongoDB.URI)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 9000 {
		t.Errorf("API = %s:%d, want 192.168.1.1:9000", cfg.API.Host, cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GREENHOUSE_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want default 3000", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Backend != BackendSQLite {
		t.Errorf("Database.Backend = %q, want sqlite", cfg.Database.Backend)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want 3000", cfg.API.Port)
	}
	if cfg.Alerting.TemperatureHigh != 35 || cfg.Alerting.TemperatureLow != 5 {
		t.Errorf("Alerting = %+v, want 35/5", cfg.Alerting)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v", err)
	}
}
