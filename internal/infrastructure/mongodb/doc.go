// Package mongodb provides the MongoDB storage backend for Greenhouse Core.
//
// It owns the driver connection, bring-up retries, index creation, the
// counters collection used to assign integer ids, and transactions. The
// telemetry and audit packages build their Mongo repositories on top of it.
//
// Transactions require a replica set (a single-node replica set is enough).
//
// Usage:
//
//	client, err := mongodb.ConnectWithRetry(ctx, mongodb.Config{
//	    URI:      "mongodb://localhost:27017/?replicaSet=rs0",
//	    Database: "greenhouse_iot",
//	    Timeout:  10 * time.Second,
//	}, retry.Policy{MaxAttempts: 3, Delay: 5 * time.Second})
//	if err != nil {
//	    return err // wraps ErrInitFailed
//	}
//	defer client.Close(context.Background())
package mongodb
