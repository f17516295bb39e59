// Package database manages the SQLite connection for Relay Core.
//
// It provides:
//   - Connection lifecycle (open, health check, close)
//   - WAL mode and busy-timeout configuration for concurrent access
//   - Schema migrations from embedded SQL files
//
// SQLite is configured with a single writer connection; the automation
// engine and API share it through the connection pool.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/relay.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
