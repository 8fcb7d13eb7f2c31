// Package database provides SQLite connectivity and schema migrations.
//
// The sync service keeps two kinds of local data in SQLite: the last value
// of each persistent variable resource, and an append-only history of state
// changes. Both live behind internal/store; this package only manages the
// connection and the schema.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and are
// embedded by the top-level migrations package. Migrations only move
// forward: new columns must be nullable or carry a default, and the history
// table can always be dropped and rebuilt by the recorder.
package database
