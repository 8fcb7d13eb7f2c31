package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// openTestDB opens a WAL database in a temp dir, closed on cleanup.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "graysync.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func pragma(t *testing.T, db *DB, name string) string {
	t.Helper()
	var v string
	if err := db.QueryRowContext(context.Background(), "PRAGMA "+name).Scan(&v); err != nil {
		t.Fatalf("PRAGMA %s error = %v", name, err)
	}
	return v
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "var", "lib", "graysync", "graysync.db")
	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 3})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"busy_timeout", "3000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if got := pragma(t, db, tt.pragma); got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpenWithoutWAL(t *testing.T) {
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "graysync.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if got := pragma(t, db, "journal_mode"); got == "wal" {
		t.Error("journal_mode = wal without WALMode")
	}
}

func TestOpenUnwritablePath(t *testing.T) {
	if _, err := Open(Config{Path: "/dev/null/graysync.db"}); err == nil {
		t.Error("Open() under a file should fail")
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	db.DB.Close() //nolint:errcheck // Forcing a failure
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() on a closed database should fail")
	}
}

func TestClose(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := (&DB{}).Close(); err != nil {
		t.Errorf("Close() on zero DB error = %v", err)
	}
}

func TestExecContextWrapsErrors(t *testing.T) {
	db := openTestDB(t)
	_, err := db.ExecContext(context.Background(), "INSERT INTO missing_table VALUES (1)")
	if err == nil || !strings.HasPrefix(err.Error(), "executing query:") {
		t.Errorf("ExecContext() error = %v, want executing query prefix", err)
	}
}

// TestTransactions uses the shape of the resource_values table: a rolled
// back save leaves the previous value in place.
func TestTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE resource_values (name TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL) STRICT",
	); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	save := func(value string, commit bool) {
		t.Helper()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO resource_values (name, value, updated_at) VALUES ('setpoint', ?, 0) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
			value,
		); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if commit {
			err = tx.Commit()
		} else {
			err = tx.Rollback()
		}
		if err != nil {
			t.Fatalf("finishing transaction: %v", err)
		}
	}

	save("68", true)
	save("90", false)

	var got string
	if err := db.QueryRowContext(ctx, "SELECT value FROM resource_values WHERE name = 'setpoint'").Scan(&got); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if got != "68" {
		t.Errorf("setpoint = %s, want 68 after rollback", got)
	}
}

func TestBeginTxCancelled(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.BeginTx(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("BeginTx() error = %v, want context.Canceled", err)
	}
}
