package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/audit"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/config"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/database"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/logging"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/mongodb"
	"github.com/greenhouse-iot/greenhouse-core/internal/infrastructure/retry"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// mongoCloseTimeout bounds the driver disconnect on shutdown.
const mongoCloseTimeout = 5 * time.Second

// storage is the opened backend chosen by database.backend.
type storage struct {
	name     string
	readings telemetry.Repository
	logs     audit.Repository
	backend  telemetry.Backend

	// sqlDB is set for SQLite only, for pool metrics.
	sqlDB *sql.DB
	close func() error
}

// openStorage connects the configured backend with retries and prepares
// its schema.
func openStorage(ctx context.Context, cfg *config.Config, log *logging.Logger) (*storage, error) {
	policy := retry.Policy{
		MaxAttempts: cfg.Database.Connect.MaxAttempts,
		Delay:       cfg.ConnectDelay(),
		OnFailure: func(attempt int, err error) {
			log.Warn("storage connection attempt failed",
				"backend", cfg.Database.Backend,
				"attempt", attempt,
				"max_attempts", cfg.Database.Connect.MaxAttempts,
				"error", err,
			)
		},
	}

	switch cfg.Database.Backend {
	case config.BackendMongoDB:
		return openMongo(ctx, cfg, policy, log)
	default:
		return openSQLite(ctx, cfg, policy, log)
	}
}

func openSQLite(ctx context.Context, cfg *config.Config, policy retry.Policy, log *logging.Logger) (*storage, error) {
	db, err := database.OpenWithRetry(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	return &storage{
		name:     database.BackendName,
		readings: telemetry.NewSQLiteRepository(db.DB),
		logs:     audit.NewSQLiteRepository(db.DB),
		backend:  db,
		sqlDB:    db.DB,
		close:    db.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, policy retry.Policy, log *logging.Logger) (*storage, error) {
	client, err := mongodb.ConnectWithRetry(ctx, mongodb.Config{
		URI:      cfg.MongoDB.URI,
		Database: cfg.MongoDB.Database,
		Timeout:  time.Duration(cfg.MongoDB.Timeout) * time.Second,
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	log.Info("MongoDB connected",
		"uri", mongodb.RedactURI(cfg.MongoDB.URI),
		"database", cfg.MongoDB.Database,
	)

	return &storage{
		name:     mongodb.BackendName,
		readings: telemetry.NewMongoRepository(client),
		logs:     audit.NewMongoRepository(client),
		backend:  client,
		close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
			defer cancel()
			return client.Close(ctx)
		},
	}, nil
}
