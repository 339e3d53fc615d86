// Package database provides SQLite connectivity for Greenhouse Core.
//
// This package manages:
//   - The connection, with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - Bring-up retries (OpenWithRetry) and health/size probes
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.OpenWithRetry(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	}, retry.Policy{MaxAttempts: 3, Delay: 5 * time.Second})
//	if err != nil {
//	    return err // wraps ErrInitFailed
//	}
//	defer db.Close()
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are embedded by the top-level migrations package.
package database
