package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/retry"
)

// Collection names.
const (
	CollectionReadings   = "sensor_data"
	CollectionDeviceLogs = "device_logs"
	CollectionAlerts     = "alert_logs"
	CollectionCounters   = "counters"
)

// BackendName identifies this storage engine in health reports.
const BackendName = "mongodb"

const defaultTimeout = 10 * time.Second

var (
	// ErrInitFailed is returned by ConnectWithRetry when every attempt failed.
	ErrInitFailed = errors.New("mongodb: initialisation failed")

	// ErrNotConnected is returned by operations on a closed client.
	ErrNotConnected = errors.New("mongodb: not connected")
)

// Config holds connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Client wraps a driver client bound to one database.
type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Connect dials MongoDB, verifies the primary answers a ping and ensures the
// indexes used by the repositories exist.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	mc, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	c := &Client{
		client:  mc,
		db:      mc.Database(cfg.Database),
		timeout: timeout,
	}

	if err := c.HealthCheck(ctx); err != nil {
		mc.Disconnect(context.Background()) //nolint:errcheck // error path cleanup
		return nil, err
	}

	if err := c.ensureIndexes(ctx); err != nil {
		mc.Disconnect(context.Background()) //nolint:errcheck // error path cleanup
		return nil, err
	}

	return c, nil
}

// ConnectWithRetry calls Connect according to policy. When every attempt
// fails the error wraps ErrInitFailed and the last cause.
func ConnectWithRetry(ctx context.Context, cfg Config, policy retry.Policy) (*Client, error) {
	var c *Client
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		connected, err := Connect(ctx, cfg)
		if err != nil {
			return err
		}
		c = connected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	return c, nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		CollectionReadings: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "sensorId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		CollectionDeviceLogs: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "deviceId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		CollectionAlerts: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "severity", Value: 1}, {Key: "acknowledged", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Database returns the bound database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Collection returns a collection of the bound database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// NextSequence atomically increments and returns the named counter.
// The first call for a name returns 1.
func (c *Client) NextSequence(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := c.db.Collection(CollectionCounters).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("incrementing %s sequence: %w", name, err)
	}
	return doc.Seq, nil
}

// WithTransaction runs fn inside a multi-document transaction. The context
// passed to fn carries the session; use it for every operation that must be
// part of the transaction.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Name returns the storage engine name.
func (c *Client) Name() string {
	return BackendName
}

// Location returns the database name.
func (c *Client) Location() string {
	return c.db.Name()
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("pinging mongodb: %w", err)
	}
	return nil
}

// Version returns the server version reported by buildInfo.
func (c *Client) Version(ctx context.Context) (string, error) {
	var info struct {
		Version string `bson:"version"`
	}
	if err := c.db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		return "", fmt.Errorf("reading build info: %w", err)
	}
	return info.Version, nil
}

// Size returns the storage plus index size of the database in bytes.
func (c *Client) Size(ctx context.Context) (int64, error) {
	var stats bson.M
	if err := c.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&stats); err != nil {
		return 0, fmt.Errorf("reading db stats: %w", err)
	}
	return toInt64(stats["storageSize"]) + toInt64(stats["indexSize"]), nil
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	if err != nil {
		return fmt.Errorf("disconnecting mongodb: %w", err)
	}
	return nil
}

// toInt64 converts the numeric types dbStats may return.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// RedactURI strips credentials from a connection string for logging.
func RedactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "mongodb://<invalid>"
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	return u.String()
}
