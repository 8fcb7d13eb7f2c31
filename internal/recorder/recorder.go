package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-sync/internal/fault"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sync/internal/state"
)

// DefaultPruneInterval is how often old history is removed.
const DefaultPruneInterval = time.Hour

const module = "recorder"

// Logger defines the logging interface for the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store persists history and variable values.
type Store interface {
	RecordChanges(ctx context.Context, diff state.Snapshot) error
	Save(ctx context.Context, name string, value any) error
	Prune(ctx context.Context, age time.Duration) (int64, error)
}

// StateWriter sends state changes to a time-series database.
type StateWriter interface {
	WriteState(service, resource string, value any, ts time.Time) bool
}

// Publisher publishes retained messages to a broker.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Deps holds the recorder's collaborators. Only Cache is required.
type Deps struct {
	Cache *state.Cache

	// Service names the local service in telemetry tags and topics.
	Service string

	// Persist lists the resources whose values are saved on every change.
	Persist []string

	// Retention is the age after which history rows are pruned. Zero keeps
	// everything.
	Retention     time.Duration
	PruneInterval time.Duration

	Store  Store
	Influx StateWriter
	MQTT   Publisher

	Logger Logger
	Fault  fault.Notifier
}

// Recorder writes cache changes to the configured sinks.
type Recorder struct {
	cache   *state.Cache
	service string
	persist map[string]struct{}

	retention     time.Duration
	pruneInterval time.Duration

	store  Store
	influx StateWriter
	mqtt   Publisher

	logger Logger
	fault  fault.Notifier
	now    func() time.Time
}

// New creates a recorder. It does nothing until Run.
func New(deps Deps) *Recorder {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.PruneInterval <= 0 {
		deps.PruneInterval = DefaultPruneInterval
	}
	if deps.Service == "" {
		deps.Service = deps.Cache.Name()
	}
	persist := make(map[string]struct{}, len(deps.Persist))
	for _, name := range deps.Persist {
		persist[name] = struct{}{}
	}
	return &Recorder{
		cache:         deps.Cache,
		service:       deps.Service,
		persist:       persist,
		retention:     deps.Retention,
		pruneInterval: deps.PruneInterval,
		store:         deps.Store,
		influx:        deps.Influx,
		mqtt:          deps.MQTT,
		logger:        deps.Logger,
		fault:         deps.Fault,
		now:           time.Now,
	}
}

// Run records the current snapshot and then every change until ctx is
// cancelled. It always returns nil once ctx is done; failures are logged and
// reported, never fatal.
func (r *Recorder) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.follow(ctx)
		return nil
	})
	if r.store != nil && r.retention > 0 {
		g.Go(func() error {
			r.pruneLoop(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (r *Recorder) follow(ctx context.Context) {
	watch := r.cache.Watch()
	last := r.cache.States()
	r.record(ctx, state.Diff(state.Snapshot{}, last, false))

	for {
		current, err := watch.Next(ctx)
		if err != nil {
			return
		}
		diff := state.Diff(last, current, true)
		last = current
		if len(diff) > 0 {
			r.record(ctx, diff)
		}
	}
}

// record writes one diff to every sink. A panic in a sink is reported and
// the diff dropped.
func (r *Recorder) record(ctx context.Context, diff state.Snapshot) {
	if len(diff) == 0 {
		return
	}
	fault.Guard(module, r.fault, func() { //nolint:errcheck // Reported through the notifier
		r.toStore(ctx, diff)
		r.toInflux(diff)
		r.toMQTT(diff)
	})
}

func (r *Recorder) toStore(ctx context.Context, diff state.Snapshot) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordChanges(ctx, diff); err != nil && ctx.Err() == nil {
		r.logger.Error("recording state history", "changes", len(diff), "error", err)
		r.fault.Notify(module, err)
	}

	for name, value := range diff {
		if _, ok := r.persist[name]; !ok || value == nil {
			continue
		}
		if err := r.store.Save(ctx, name, value); err != nil && ctx.Err() == nil {
			r.logger.Error("saving variable", "resource", name, "error", err)
			r.fault.Notify(module, err)
		}
	}
}

func (r *Recorder) toInflux(diff state.Snapshot) {
	if r.influx == nil {
		return
	}
	ts := r.now()
	for name, value := range diff {
		r.influx.WriteState(r.service, name, value, ts)
	}
}

// statePayload is the retained message body of a state topic.
type statePayload struct {
	State     any   `json:"state"`
	Timestamp int64 `json:"timestamp"`
}

func (r *Recorder) toMQTT(diff state.Snapshot) {
	if r.mqtt == nil {
		return
	}
	topics := mqtt.Topics{}
	ts := r.now().UnixMilli()
	for name, value := range diff {
		payload, err := json.Marshal(statePayload{State: value, Timestamp: ts})
		if err != nil {
			r.logger.Warn("encoding state message", "resource", name, "error", err)
			continue
		}
		if err := r.mqtt.PublishRetained(topics.State(r.service, name), payload); err != nil {
			r.logger.Debug("publishing state", "resource", name, "error", err)
		}
	}
}

func (r *Recorder) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pruneInterval)
	defer ticker.Stop()

	for {
		r.prune(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) prune(ctx context.Context) {
	n, err := r.store.Prune(ctx, r.retention)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("pruning state history", "error", err)
			r.fault.Notify(module, fmt.Errorf("pruning history: %w", err))
		}
		return
	}
	if n > 0 {
		r.logger.Info("pruned state history", "rows", n, "retention", r.retention)
	}
}
