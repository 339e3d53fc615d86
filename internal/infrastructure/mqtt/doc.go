// Package mqtt connects the greenhouse service to its MQTT broker.
//
// The client publishes actuator commands on greenhouse/control/<device>,
// receives sensor readings on greenhouse/sensors/<sensor>/data, and keeps a
// retained online/offline status (with a last will) on
// greenhouse/system/status.
//
// Connecting never blocks: Connect starts paho's retry loop and callers
// check IsConnected before publishing. Publishes are never queued while
// the connection is down; they fail with ErrNotConnected.
//
//	client := mqtt.New(cfg.MQTT)
//	client.SetLogger(log)
//	client.Connect()
//	defer client.Close()
//
//	err := client.PublishPayload(client.Topics().DeviceControl("fan_1"), cmd)
package mqtt
