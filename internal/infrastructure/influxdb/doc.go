// Package influxdb mirrors greenhouse events into InfluxDB v2 for long-term
// trend dashboards.
//
// The relational store stays authoritative; this mirror is optional
// (influxdb.enabled) and best effort. Three measurements are written:
// sensor_reading (tag sensor_id), alert (tags type, sensor_id, severity)
// and device_command (tags device_id, command, status).
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("s1", map[string]float64{"temperature": 21.5}, time.Now())
//
// Writes are batched (batch_size, flush_interval) and never block the
// caller. Batch failures are delivered to the SetOnError callback.
package influxdb
