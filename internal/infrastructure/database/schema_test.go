package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-sync/migrations"
)

func TestEmbeddedSchema(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "schema.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if v, err := db.SchemaVersion(ctx); err != nil || v != "20260601_000100" {
		t.Errorf("SchemaVersion() = %q, %v; want 20260601_000100", v, err)
	}

	for _, obj := range []struct{ kind, name string }{
		{"table", "resource_values"},
		{"table", "state_history"},
		{"index", "idx_state_history_name_time"},
		{"index", "idx_state_history_time"},
	} {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?", obj.kind, obj.name,
		).Scan(&n)
		if err != nil || n != 1 {
			t.Errorf("%s %s: count=%d err=%v", obj.kind, obj.name, n, err)
		}
	}

	// STRICT tables reject a non-integer timestamp.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO state_history (name, value, recorded_at) VALUES ('tempA', '70', 'yesterday')",
	); err == nil {
		t.Error("state_history accepted a text recorded_at")
	}
}
