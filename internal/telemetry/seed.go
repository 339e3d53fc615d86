package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
)

func f64(v float64) *float64 { return &v }

// SeedSampleData inserts a few readings and command logs into empty tables
// so a development instance has something to show. Tables that already
// hold rows are left alone.
func (s *Store) SeedSampleData(ctx context.Context, topicPrefix string) error {
	now := s.now().UTC()

	summary, err := s.readings.Summary(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if summary.ReadingCount == 0 {
		samples := []NewReading{
			{
				SensorID:       "temperature_sensor_1",
				Temperature:    f64(25.5),
				Humidity:       f64(60.5),
				SoilMoisture:   f64(45.0),
				LightIntensity: f64(800),
				CO2Level:       f64(420),
				Timestamp:      now.Add(-time.Hour),
			},
			{
				SensorID:       "temperature_sensor_2",
				Temperature:    f64(23.8),
				Humidity:       f64(65.2),
				SoilMoisture:   f64(52.0),
				LightIntensity: f64(950),
				CO2Level:       f64(410),
				Timestamp:      now.Add(-30 * time.Minute),
			},
		}
		for _, sample := range samples {
			if _, err := s.Record(ctx, sample); err != nil {
				return err
			}
		}
		s.logger.Info("sample sensor data created", "count", len(samples))
	}

	logs, err := s.logs.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if logs == 0 {
		samples := []audit.CommandLog{
			{DeviceID: "fan_1", Command: "ON", Timestamp: now.Add(-2 * time.Hour)},
			{DeviceID: "pump_1", Command: "OFF", Timestamp: now.Add(-time.Hour)},
		}
		for i := range samples {
			samples[i].Topic = topicPrefix + samples[i].DeviceID
			samples[i].Status = audit.StatusSuccess
			if err := s.logs.Create(ctx, &samples[i]); err != nil {
				return fmt.Errorf("%w: %w", ErrStorage, err)
			}
		}
		s.logger.Info("sample device logs created", "count", len(samples))
	}
	return nil
}
