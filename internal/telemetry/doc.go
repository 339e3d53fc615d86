// Package telemetry persists greenhouse sensor readings, raises threshold
// alerts in the same transaction, and serves filtered, paginated and
// aggregated reads over readings, alerts and device command logs.
//
// The Store is backend-agnostic. SQLiteRepository and MongoRepository
// implement Repository; which one runs is decided once at startup.
//
// A reading and its alert are committed together or not at all. Listeners
// are notified only after commit.
package telemetry
