// Package store keeps local state in SQLite: the last value of each
// persistent variable resource, and a history of observed state changes.
//
// The schema is provided by the top-level migrations package; callers open
// the database with internal/infrastructure/database, run Migrate, then hand
// the connection to New.
package store
