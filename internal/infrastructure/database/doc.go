// Package database provides the SQLite connection used by the registration
// audit trail.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Embedded schema migrations tracked in schema_migrations
//   - Health checks and lifecycle management
//
// All queries use parameterised statements and the database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are applied oldest first.
package database
