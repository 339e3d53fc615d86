// Package api implements the HTTP REST API and WebSocket server.
//
// This package provides:
//   - Sensor reading ingest and queries, per-sensor statistics and alerts
//   - Device ON/OFF control relayed over MQTT, plus the command audit log
//   - Status, database health and metrics, and a retention prune endpoint
//   - A WebSocket hub that streams readings, alerts and command outcomes
//
// # Graceful Degradation
//
// The server keeps serving reads while the broker is down. Only device
// control fails, with a 500 naming the broker as the cause.
package api
