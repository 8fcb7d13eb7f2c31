package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sync/internal/state"
	_ "github.com/nerrad567/gray-logic-sync/migrations"
)

// testClock is a manually advanced clock.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// setupStore opens a migrated database in a temp dir.
func setupStore(t *testing.T) (*Store, *testClock) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "store.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	clock := &testClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := New(db.DB)
	s.now = clock.now
	return s, clock
}

func TestSaveLoad(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	values := map[string]any{
		"setpoint": 21.5,
		"mode":     "eco",
		"away":     true,
		"unknown":  nil,
	}
	for name, v := range values {
		if err := s.Save(ctx, name, v); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}
	// Overwrite keeps a single row.
	if err := s.Save(ctx, "setpoint", 19); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := state.Snapshot{"setpoint": 19, "mode": "eco", "away": true, "unknown": nil}
	if len(got) != len(want) {
		t.Fatalf("Load() = %v, want %v", got, want)
	}
	for name, v := range want {
		gv, ok := got[name]
		if !ok || !state.Equal(gv, v) {
			t.Errorf("Load()[%s] = %v (present=%v), want %v", name, gv, ok, v)
		}
	}
}

func TestSaveErrors(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "", 1); !errors.Is(err, ErrNameRequired) {
		t.Errorf("Save(\"\") error = %v, want ErrNameRequired", err)
	}
	if err := s.Save(ctx, "bad", math.NaN()); !errors.Is(err, ErrEncode) {
		t.Errorf("Save(NaN) error = %v, want ErrEncode", err)
	}
}

func TestHistory(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	for i, v := range []any{70, 71, 72} {
		diff := state.Snapshot{"tempA": v}
		if i == 1 {
			diff["doorOpen"] = 1
		}
		if err := s.RecordChanges(ctx, diff); err != nil {
			t.Fatalf("RecordChanges() error = %v", err)
		}
		clock.advance(time.Minute)
	}

	entries, err := s.History(ctx, "tempA", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("History() returned %d entries, want 3", len(entries))
	}
	// Newest first.
	for i, want := range []float64{72, 71, 70} {
		if !state.Equal(entries[i].Value, want) {
			t.Errorf("entries[%d].Value = %v, want %v", i, entries[i].Value, want)
		}
	}
	if !entries[0].Time.After(entries[2].Time) {
		t.Errorf("entries not ordered newest first: %v, %v", entries[0].Time, entries[2].Time)
	}

	limited, err := s.History(ctx, "tempA", 1)
	if err != nil {
		t.Fatalf("History(limit=1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("History(limit=1) returned %d entries", len(limited))
	}

	door, err := s.History(ctx, "doorOpen", 10)
	if err != nil {
		t.Fatalf("History(doorOpen) error = %v", err)
	}
	if len(door) != 1 {
		t.Errorf("History(doorOpen) returned %d entries, want 1", len(door))
	}

	if _, err := s.History(ctx, "", 10); !errors.Is(err, ErrNameRequired) {
		t.Errorf("History(\"\") error = %v, want ErrNameRequired", err)
	}
}

func TestRecordChangesDeleted(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	if err := s.RecordChanges(ctx, state.Snapshot{"gone": nil}); err != nil {
		t.Fatalf("RecordChanges() error = %v", err)
	}
	if err := s.RecordChanges(ctx, nil); err != nil {
		t.Fatalf("RecordChanges(nil) error = %v", err)
	}

	entries, err := s.History(ctx, "gone", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Value != nil {
		t.Errorf("History() = %+v, want one nil entry", entries)
	}
}

func TestPrune(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	if err := s.RecordChanges(ctx, state.Snapshot{"tempA": 70}); err != nil {
		t.Fatalf("RecordChanges() error = %v", err)
	}
	clock.advance(48 * time.Hour)
	if err := s.RecordChanges(ctx, state.Snapshot{"tempA": 71}); err != nil {
		t.Fatalf("RecordChanges() error = %v", err)
	}

	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d rows, want 1", n)
	}

	entries, err := s.History(ctx, "tempA", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 || !state.Equal(entries[0].Value, 71) {
		t.Errorf("History() after prune = %+v", entries)
	}

	if _, err := s.Prune(ctx, 0); !errors.Is(err, ErrInvalidAge) {
		t.Errorf("Prune(0) error = %v, want ErrInvalidAge", err)
	}
}
