// Package config handles loading and validating Greenhouse Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GREENHOUSE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, MongoDB URI with
// credentials) should be supplied through the environment rather than the
// file. The config file should have restricted permissions (0600).
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Backend)
package config
