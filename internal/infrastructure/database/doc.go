// Package database provides the SQLite store behind GeoControl Core.
//
// It owns the connection (foreign keys on, optional WAL, single writer),
// embedded schema migrations and a small transaction helper used by the
// repositories for multi-statement operations such as natural-key renames.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
