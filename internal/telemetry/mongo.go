package telemetry

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

type readingDoc struct {
	ID             int64     `bson:"id"`
	SensorID       string    `bson:"sensorId"`
	Temperature    float64   `bson:"temperature"`
	Humidity       float64   `bson:"humidity"`
	SoilMoisture   *float64  `bson:"soilMoisture,omitempty"`
	LightIntensity *float64  `bson:"lightIntensity,omitempty"`
	CO2Level       *float64  `bson:"co2Level,omitempty"`
	Timestamp      time.Time `bson:"timestamp"`
	CreatedAt      time.Time `bson:"createdAt"`
}

type alertDoc struct {
	ID             int64      `bson:"id"`
	Type           string     `bson:"type"`
	SensorID       string     `bson:"sensorId,omitempty"`
	DeviceID       string     `bson:"deviceId,omitempty"`
	Value          float64    `bson:"value"`
	Threshold      float64    `bson:"threshold"`
	Message        string     `bson:"message"`
	Severity       string     `bson:"severity"`
	Acknowledged   bool       `bson:"acknowledged"`
	AcknowledgedAt *time.Time `bson:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `bson:"acknowledgedBy,omitempty"`
	Timestamp      time.Time  `bson:"timestamp"`
}

// MongoRepository stores readings and alerts in MongoDB collections.
// Reading and alert inserts share a multi-document transaction.
type MongoRepository struct {
	client   *mongodb.Client
	readings *mongo.Collection
	alerts   *mongo.Collection
}

// NewMongoRepository creates a repository on client.
func NewMongoRepository(client *mongodb.Client) *MongoRepository {
	return &MongoRepository{
		client:   client,
		readings: client.Collection(mongodb.CollectionReadings),
		alerts:   client.Collection(mongodb.CollectionAlerts),
	}
}

// InsertReading stores the reading and optional alert in one transaction.
func (r *MongoRepository) InsertReading(ctx context.Context, reading *Reading, alert *Alert) error {
	var readingID, alertID int64

	err := r.client.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if readingID, err = r.client.NextSequence(ctx, mongodb.CollectionReadings); err != nil {
			return err
		}
		doc := readingDoc{
			ID:             readingID,
			SensorID:       reading.SensorID,
			Temperature:    reading.Temperature,
			Humidity:       reading.Humidity,
			SoilMoisture:   reading.SoilMoisture,
			LightIntensity: reading.LightIntensity,
			CO2Level:       reading.CO2Level,
			Timestamp:      reading.Timestamp,
			CreatedAt:      time.Now().UTC(),
		}
		if _, err := r.readings.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("inserting reading: %w", err)
		}

		if alert == nil {
			return nil
		}
		if alertID, err = r.client.NextSequence(ctx, mongodb.CollectionAlerts); err != nil {
			return err
		}
		if _, err := r.alerts.InsertOne(ctx, alertDoc{
			ID:        alertID,
			Type:      alert.Type,
			SensorID:  alert.SensorID,
			DeviceID:  alert.DeviceID,
			Value:     alert.Value,
			Threshold: alert.Threshold,
			Message:   alert.Message,
			Severity:  string(alert.Severity),
			Timestamp: alert.Timestamp,
		}); err != nil {
			return fmt.Errorf("inserting alert: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	reading.ID = readingID
	if alert != nil {
		alert.ID = alertID
	}
	return nil
}

func timeWindow(start, end *time.Time) bson.D {
	window := bson.D{}
	if start != nil {
		window = append(window, bson.E{Key: "$gte", Value: start.UTC()})
	}
	if end != nil {
		window = append(window, bson.E{Key: "$lte", Value: end.UTC()})
	}
	return window
}

func readingFilter(f Filter) bson.D {
	filter := bson.D{}
	if f.SensorID != "" {
		filter = append(filter, bson.E{Key: "sensorId", Value: f.SensorID})
	}
	if w := timeWindow(f.StartDate, f.EndDate); len(w) > 0 {
		filter = append(filter, bson.E{Key: "timestamp", Value: w})
	}
	temp := bson.D{}
	if f.MinTemperature != nil {
		temp = append(temp, bson.E{Key: "$gte", Value: *f.MinTemperature})
	}
	if f.MaxTemperature != nil {
		temp = append(temp, bson.E{Key: "$lte", Value: *f.MaxTemperature})
	}
	if len(temp) > 0 {
		filter = append(filter, bson.E{Key: "temperature", Value: temp})
	}
	return filter
}

func findOptions(page pagination.Request) *options.FindOptionsBuilder {
	dir := -1
	if page.SortOrder == pagination.Asc {
		dir = 1
	}
	return options.Find().
		SetSort(bson.D{{Key: page.SortBy, Value: dir}, {Key: "id", Value: dir}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
}

// ListReadings returns one page of readings matching the filter.
func (r *MongoRepository) ListReadings(ctx context.Context, filter Filter, page pagination.Request) ([]Reading, int, error) {
	page = page.Normalize(ReadingSortFields...)
	query := readingFilter(filter)

	total, err := r.readings.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting readings: %w", err)
	}

	cursor, err := r.readings.Find(ctx, query, findOptions(page))
	if err != nil {
		return nil, 0, fmt.Errorf("querying readings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []readingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decoding readings: %w", err)
	}

	readings := make([]Reading, 0, len(docs))
	for _, d := range docs {
		readings = append(readings, Reading{
			ID:             d.ID,
			SensorID:       d.SensorID,
			Temperature:    d.Temperature,
			Humidity:       d.Humidity,
			SoilMoisture:   d.SoilMoisture,
			LightIntensity: d.LightIntensity,
			CO2Level:       d.CO2Level,
			Timestamp:      d.Timestamp.UTC(),
		})
	}
	return readings, int(total), nil
}

// ReadingStats aggregates one sensor's readings with timestamps in [from, to].
func (r *MongoRepository) ReadingStats(ctx context.Context, sensorID string, from, to time.Time) (ReadingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "sensorId", Value: sensorID},
			{Key: "timestamp", Value: timeWindow(&from, &to)},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avgTemperature", Value: bson.D{{Key: "$avg", Value: "$temperature"}}},
			{Key: "minTemperature", Value: bson.D{{Key: "$min", Value: "$temperature"}}},
			{Key: "maxTemperature", Value: bson.D{{Key: "$max", Value: "$temperature"}}},
			{Key: "avgHumidity", Value: bson.D{{Key: "$avg", Value: "$humidity"}}},
			{Key: "readingCount", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.readings.Aggregate(ctx, pipeline)
	if err != nil {
		return ReadingStats{}, fmt.Errorf("aggregating readings: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		AvgTemperature *float64 `bson:"avgTemperature"`
		MinTemperature *float64 `bson:"minTemperature"`
		MaxTemperature *float64 `bson:"maxTemperature"`
		AvgHumidity    *float64 `bson:"avgHumidity"`
		ReadingCount   int      `bson:"readingCount"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return ReadingStats{}, fmt.Errorf("decoding reading stats: %w", err)
	}
	if len(groups) == 0 {
		return ReadingStats{}, nil
	}
	g := groups[0]
	return ReadingStats{
		AvgTemperature: g.AvgTemperature,
		MinTemperature: g.MinTemperature,
		MaxTemperature: g.MaxTemperature,
		AvgHumidity:    g.AvgHumidity,
		ReadingCount:   g.ReadingCount,
	}, nil
}

// DeleteReadingsBefore removes readings older than cutoff.
func (r *MongoRepository) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.readings.DeleteMany(ctx, bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}}})
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}
	return res.DeletedCount, nil
}

func alertFilter(f AlertFilter) bson.D {
	filter := bson.D{}
	if f.SensorID != "" {
		filter = append(filter, bson.E{Key: "sensorId", Value: f.SensorID})
	}
	if f.Type != "" {
		filter = append(filter, bson.E{Key: "type", Value: f.Type})
	}
	if f.Severity != "" {
		filter = append(filter, bson.E{Key: "severity", Value: string(f.Severity)})
	}
	if f.Acknowledged != nil {
		filter = append(filter, bson.E{Key: "acknowledged", Value: *f.Acknowledged})
	}
	if w := timeWindow(f.StartDate, f.EndDate); len(w) > 0 {
		filter = append(filter, bson.E{Key: "timestamp", Value: w})
	}
	return filter
}

// ListAlerts returns one page of alerts matching the filter.
func (r *MongoRepository) ListAlerts(ctx context.Context, filter AlertFilter, page pagination.Request) ([]Alert, int, error) {
	page = page.Normalize(AlertSortFields...)
	query := alertFilter(filter)

	total, err := r.alerts.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting alerts: %w", err)
	}

	cursor, err := r.alerts.Find(ctx, query, findOptions(page))
	if err != nil {
		return nil, 0, fmt.Errorf("querying alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []alertDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decoding alerts: %w", err)
	}

	alerts := make([]Alert, 0, len(docs))
	for _, d := range docs {
		alerts = append(alerts, Alert{
			ID:             d.ID,
			Type:           d.Type,
			SensorID:       d.SensorID,
			DeviceID:       d.DeviceID,
			Value:          d.Value,
			Threshold:      d.Threshold,
			Message:        d.Message,
			Severity:       Severity(d.Severity),
			Acknowledged:   d.Acknowledged,
			AcknowledgedAt: d.AcknowledgedAt,
			AcknowledgedBy: d.AcknowledgedBy,
			Timestamp:      d.Timestamp.UTC(),
		})
	}
	return alerts, int(total), nil
}

// Summary returns collection counts and the reading time span.
func (r *MongoRepository) Summary(ctx context.Context) (Summary, error) {
	var s Summary

	n, err := r.readings.CountDocuments(ctx, bson.D{})
	if err != nil {
		return Summary{}, fmt.Errorf("counting readings: %w", err)
	}
	s.ReadingCount = int(n)

	if n, err = r.alerts.CountDocuments(ctx, bson.D{}); err != nil {
		return Summary{}, fmt.Errorf("counting alerts: %w", err)
	}
	s.AlertCount = int(n)

	if s.OldestReading, err = r.edgeTimestamp(ctx, 1); err != nil {
		return Summary{}, err
	}
	if s.LatestReading, err = r.edgeTimestamp(ctx, -1); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// edgeTimestamp returns the first reading timestamp in the given direction.
func (r *MongoRepository) edgeTimestamp(ctx context.Context, dir int) (*time.Time, error) {
	var doc struct {
		Timestamp time.Time `bson:"timestamp"`
	}
	err := r.readings.FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: dir}}).SetProjection(bson.D{{Key: "timestamp", Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading timestamp bounds: %w", err)
	}
	t := doc.Timestamp.UTC()
	return &t, nil
}

// Probe reads at most one document from each collection.
func (r *MongoRepository) Probe(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{r.readings, r.alerts} {
		err := coll.FindOne(ctx, bson.D{}).Err()
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("probing %s: %w", coll.Name(), err)
		}
	}
	return nil
}
