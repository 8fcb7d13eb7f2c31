package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
	"github.com/nerrad567/gray-logic-sync/internal/state"
)

type fakeStore struct {
	mu       sync.Mutex
	history  []state.Snapshot
	saved    map[string][]any
	prunes   []time.Duration
	fail     error
	pruneErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]any)}
}

func (f *fakeStore) RecordChanges(_ context.Context, diff state.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.history = append(f.history, diff.Clone())
	return nil
}

func (f *fakeStore) Save(_ context.Context, name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[name] = append(f.saved[name], value)
	return nil
}

func (f *fakeStore) Prune(_ context.Context, age time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes = append(f.prunes, age)
	return 0, f.pruneErr
}

func (f *fakeStore) lastSaved(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.saved[name]
	if len(values) == 0 {
		return nil
	}
	return values[len(values)-1]
}

func (f *fakeStore) historyLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

type point struct {
	service, resource string
	value             any
}

type fakeInflux struct {
	mu     sync.Mutex
	points []point
}

func (f *fakeInflux) WriteState(service, resource string, value any, _ time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point{service, resource, value})
	return true
}

func (f *fakeInflux) has(p point) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, got := range f.points {
		if got == p {
			return true
		}
	}
	return false
}

type fakeBroker struct {
	mu       sync.Mutex
	retained map[string][]byte
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retained == nil {
		f.retained = make(map[string][]byte)
	}
	f.retained[topic] = payload
	return nil
}

func (f *fakeBroker) get(topic string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retained[topic]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// setupCache starts a cache over two variables.
func setupCache(t *testing.T) (*state.Cache, *resource.Variable) {
	t.Helper()
	coll := resource.NewCollection("test")
	setpoint := resource.NewVariable(resource.Meta{Name: "setpoint", Type: "tempSetpoint"}, 68)
	mode := resource.NewVariable(resource.Meta{Name: "mode", Type: "mode"}, "home")
	coll.Add(setpoint)
	coll.Add(mode)

	cache := state.NewCache(coll, state.CacheConfig{Interval: time.Hour})
	setpoint.SetOnChange(cache.Notify)
	mode.SetOnChange(cache.Notify)

	ctx, cancel := context.WithCancel(context.Background())
	if err := cache.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		cache.Stop()
	})
	return cache, setpoint
}

func runRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func TestRecorderWritesChanges(t *testing.T) {
	cache, setpoint := setupCache(t)
	store := newFakeStore()
	influx := &fakeInflux{}
	broker := &fakeBroker{}

	runRecorder(t, New(Deps{
		Cache:   cache,
		Service: "kitchen",
		Persist: []string{"setpoint"},
		Store:   store,
		Influx:  influx,
		MQTT:    broker,
	}))

	// The starting snapshot is recorded first.
	waitFor(t, func() bool { return store.historyLen() >= 1 && store.lastSaved("setpoint") == 68 })
	if got := store.lastSaved("mode"); got != nil {
		t.Errorf("mode is not persistent but was saved as %v", got)
	}

	if err := setpoint.SetState(context.Background(), 72); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	waitFor(t, func() bool { return store.lastSaved("setpoint") == 72 })
	waitFor(t, func() bool { return influx.has(point{"kitchen", "setpoint", 72}) })

	var msg statePayload
	if err := json.Unmarshal(broker.get("graysync/state/kitchen/setpoint"), &msg); err != nil {
		t.Fatalf("decoding retained state: %v", err)
	}
	if msg.State != 72.0 {
		t.Errorf("retained state = %v, want 72", msg.State)
	}
	if msg.Timestamp == 0 {
		t.Error("retained state has no timestamp")
	}
}

func TestRecorderReportsStoreFailure(t *testing.T) {
	cache, _ := setupCache(t)
	store := newFakeStore()
	store.fail = errors.New("disk full")

	var mu sync.Mutex
	var modules []string
	runRecorder(t, New(Deps{
		Cache: cache,
		Store: store,
		Fault: func(module string, _ error) {
			mu.Lock()
			modules = append(modules, module)
			mu.Unlock()
		},
	}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(modules) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	if modules[0] != "recorder" {
		t.Errorf("fault module = %q, want recorder", modules[0])
	}
}

func TestRecorderPrunes(t *testing.T) {
	cache, _ := setupCache(t)
	store := newFakeStore()

	runRecorder(t, New(Deps{
		Cache:         cache,
		Store:         store,
		Retention:     48 * time.Hour,
		PruneInterval: 10 * time.Millisecond,
	}))

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.prunes) >= 2
	})
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.prunes[0] != 48*time.Hour {
		t.Errorf("prune age = %v, want 48h", store.prunes[0])
	}
}

func TestRecorderWithoutSinks(t *testing.T) {
	cache, setpoint := setupCache(t)
	r := New(Deps{Cache: cache})
	if r.service != "test" {
		t.Errorf("service = %q, want cache name", r.service)
	}
	runRecorder(t, r)

	if err := setpoint.SetState(context.Background(), 70); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	waitFor(t, func() bool {
		v, _ := cache.State("setpoint")
		return v == 70
	})
}
