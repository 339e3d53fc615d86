package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/mongodb"
	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
)

type commandLogDoc struct {
	ID           int64     `bson:"id"`
	DeviceID     string    `bson:"deviceId"`
	Command      string    `bson:"command"`
	Topic        string    `bson:"topic"`
	Status       string    `bson:"status"`
	ErrorMessage string    `bson:"errorMessage,omitempty"`
	Timestamp    time.Time `bson:"timestamp"`
}

func (d commandLogDoc) toLog() CommandLog {
	return CommandLog{
		ID:           d.ID,
		DeviceID:     d.DeviceID,
		Command:      d.Command,
		Topic:        d.Topic,
		Status:       Status(d.Status),
		ErrorMessage: d.ErrorMessage,
		Timestamp:    d.Timestamp.UTC(),
	}
}

// MongoRepository stores command logs in the device_logs collection.
// Integer ids come from the shared counters collection.
type MongoRepository struct {
	client *mongodb.Client
	coll   *mongo.Collection
}

// NewMongoRepository creates a command log repository on client.
func NewMongoRepository(client *mongodb.Client) *MongoRepository {
	return &MongoRepository{
		client: client,
		coll:   client.Collection(mongodb.CollectionDeviceLogs),
	}
}

// Create assigns the next id and inserts the log.
func (r *MongoRepository) Create(ctx context.Context, log *CommandLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	id, err := r.client.NextSequence(ctx, mongodb.CollectionDeviceLogs)
	if err != nil {
		return err
	}

	doc := commandLogDoc{
		ID:           id,
		DeviceID:     log.DeviceID,
		Command:      log.Command,
		Topic:        log.Topic,
		Status:       string(log.Status),
		ErrorMessage: log.ErrorMessage,
		Timestamp:    log.Timestamp,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting device log: %w", err)
	}
	log.ID = id
	return nil
}

func mongoFilter(f Filter) bson.D {
	filter := bson.D{}
	if f.DeviceID != "" {
		filter = append(filter, bson.E{Key: "deviceId", Value: f.DeviceID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(f.Status)})
	}
	if f.Command != "" {
		filter = append(filter, bson.E{Key: "command", Value: f.Command})
	}
	if f.StartDate != nil || f.EndDate != nil {
		window := bson.D{}
		if f.StartDate != nil {
			window = append(window, bson.E{Key: "$gte", Value: f.StartDate.UTC()})
		}
		if f.EndDate != nil {
			window = append(window, bson.E{Key: "$lte", Value: f.EndDate.UTC()})
		}
		filter = append(filter, bson.E{Key: "timestamp", Value: window})
	}
	return filter
}

// List returns one page of logs matching the filter.
func (r *MongoRepository) List(ctx context.Context, filter Filter, page pagination.Request) ([]CommandLog, int, error) {
	page = page.Normalize(SortFields...)
	query := mongoFilter(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting device logs: %w", err)
	}

	dir := -1
	if page.SortOrder == pagination.Asc {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: page.SortBy, Value: dir}, {Key: "id", Value: dir}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying device logs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []commandLogDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decoding device logs: %w", err)
	}

	logs := make([]CommandLog, 0, len(docs))
	for _, d := range docs {
		logs = append(logs, d.toLog())
	}
	return logs, int(total), nil
}

// CountByCommand counts all logs for deviceID grouped by command.
func (r *MongoRepository) CountByCommand(ctx context.Context, deviceID string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "deviceId", Value: deviceID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$command"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("counting device commands: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Command string `bson:"_id"`
		Count   int    `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decoding command counts: %w", err)
	}

	counts := make(map[string]int, len(groups))
	for _, g := range groups {
		counts[g.Command] = g.Count
	}
	return counts, nil
}

// DeleteBefore removes logs older than cutoff.
func (r *MongoRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}}})
	if err != nil {
		return 0, fmt.Errorf("deleting device logs: %w", err)
	}
	return res.DeletedCount, nil
}

// Count returns the number of stored logs.
func (r *MongoRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting device logs: %w", err)
	}
	return int(n), nil
}

// Probe reads at most one document from the collection.
func (r *MongoRepository) Probe(ctx context.Context) error {
	err := r.coll.FindOne(ctx, bson.D{}).Err()
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("probing device_logs: %w", err)
	}
	return nil
}
