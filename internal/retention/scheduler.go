// Package retention prunes old readings and command logs on a schedule.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

const defaultInterval = 24 * time.Hour

// Pruner deletes data older than a number of days. *telemetry.Store
// satisfies it.
type Pruner interface {
	Prune(ctx context.Context, retentionDays int) (*telemetry.PruneResult, error)
}

// Logger is the subset of *logging.Logger the scheduler uses.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds scheduler settings.
type Config struct {
	// Days of data to keep. Must be at least 1.
	Days int

	// Interval between runs. Default: 24 hours.
	Interval time.Duration
}

// Scheduler runs Prune once at Start and then every Interval.
type Scheduler struct {
	pruner   Pruner
	logger   Logger
	days     int
	interval time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. Call Start to begin pruning.
func NewScheduler(cfg Config, pruner Pruner, logger Logger) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		pruner:   pruner,
		logger:   logger,
		days:     cfg.Days,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the pruning loop. It stops when ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop waits for the loop to exit. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce prunes immediately and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	res, err := s.pruner.Prune(ctx, s.days)
	if err != nil {
		s.logger.Error("scheduled data cleanup failed", "retention_days", s.days, "error", err)
		return
	}
	s.logger.Info("scheduled data cleanup finished",
		"retention_days", s.days,
		"sensor_records_deleted", res.SensorRecordsDeleted,
		"log_records_deleted", res.LogRecordsDeleted,
	)
}
