package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/state"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Entry is one recorded state change.
type Entry struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}

// Store persists variable values and the local change history in SQLite.
// It is safe for concurrent use; serialisation is left to database/sql.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store over an open, migrated database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Load returns every saved variable value keyed by resource name.
func (s *Store) Load(ctx context.Context) (state.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM resource_values")
	if err != nil {
		return nil, fmt.Errorf("querying resource values: %w", err)
	}
	defer rows.Close()

	values := make(state.Snapshot)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scanning resource value: %w", err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding value of %s: %w", name, err)
		}
		values[name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resource values: %w", err)
	}
	return values, nil
}

// Save stores the value of a variable, replacing any earlier value.
func (s *Store) Save(ctx context.Context, name string, value any) error {
	if name == "" {
		return ErrNameRequired
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resource_values (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, raw, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving value of %s: %w", name, err)
	}
	return nil
}

// RecordChanges appends one history row per entry of diff in a single
// transaction. Deleted entries are recorded with a null value.
func (s *Store) RecordChanges(ctx context.Context, diff state.Snapshot) error {
	if len(diff) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO state_history (name, value, recorded_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing history insert: %w", err)
	}
	defer stmt.Close()

	at := s.now().UnixMilli()
	for name, value := range diff {
		raw, err := encodeValue(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, raw, at); err != nil {
			return fmt.Errorf("inserting history for %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// History returns the most recent changes of one resource, newest first.
// limit defaults to 50 and is clamped to 500.
func (s *Store) History(ctx context.Context, name string, limit int) ([]Entry, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, value, recorded_at
		 FROM state_history
		 WHERE name = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var raw string
		var ms int64
		if err := rows.Scan(&e.ID, &e.Name, &raw, &ms); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if e.Value, err = decodeValue(raw); err != nil {
			return nil, fmt.Errorf("decoding history value: %w", err)
		}
		e.Time = time.UnixMilli(ms).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// Prune deletes history rows older than age and reports how many went.
func (s *Store) Prune(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, ErrInvalidAge
	}

	cutoff := s.now().Add(-age).UnixMilli()
	result, err := s.db.ExecContext(ctx, "DELETE FROM state_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func encodeValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return string(raw), nil
}

func decodeValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
