package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/fault"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sync/internal/resource"
)

// DefaultInterval is the poll loop tick.
const DefaultInterval = time.Second

// Logger defines the logging interface for the cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Name identifies the cache in logs and metrics.
	Name string

	// Interval is the poll tick. Defaults to DefaultInterval.
	Interval time.Duration

	// Signal is the change signal shared with drivers and consumers.
	// A new one is created when nil.
	Signal *Signal
}

// Cache keeps an up-to-date snapshot of every resource's state.
//
// A poll loop re-reads non-event resources on their poll cadence and an
// event loop re-reads event resources whenever the change signal fires.
// Either loop raises the signal after a pass that changed the snapshot.
type Cache struct {
	name      string
	resources *resource.Collection
	interval  time.Duration
	signal    *Signal

	mu     sync.RWMutex
	states Snapshot

	logger  Logger
	notify  fault.Notifier
	metrics *metrics.Metrics

	started  atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCache creates a cache over resources. It does nothing until Start.
func NewCache(resources *resource.Collection, cfg CacheConfig) *Cache {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Signal == nil {
		cfg.Signal = NewSignal()
	}
	if cfg.Name == "" {
		cfg.Name = resources.Name()
	}
	return &Cache{
		name:      cfg.Name,
		resources: resources,
		interval:  cfg.Interval,
		signal:    cfg.Signal,
		states:    Snapshot{},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// SetFaultNotifier sets where unexpected read errors and panics are reported.
func (c *Cache) SetFaultNotifier(n fault.Notifier) {
	c.notify = n
}

// SetMetrics attaches optional instrumentation.
func (c *Cache) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Resources returns the collection the cache tracks.
func (c *Cache) Resources() *resource.Collection { return c.resources }

// Signal returns the shared change signal.
func (c *Cache) Signal() *Signal { return c.signal }

// Started reports whether Start has been called.
func (c *Cache) Started() bool { return c.started.Load() }

// Start seeds the snapshot by reading every stateful resource once and then
// launches the poll and event loops. The loops run until ctx is cancelled
// or Stop is called.
func (c *Cache) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	for _, r := range c.resources.Values() {
		if !resource.HasState(r) {
			continue
		}
		c.update(r.Name(), c.read(ctx, "start", r))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go c.pollLoop(loopCtx)
	go c.eventLoop(loopCtx)

	c.logger.Info("state cache started",
		"cache", c.name,
		"resources", c.resources.Len(),
		"interval", c.interval,
	)
	return nil
}

// Stop terminates both loops and waits for them to exit.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
}

// States returns a copy of the current snapshot.
func (c *Cache) States() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states.Clone()
}

// State returns the cached value for name.
func (c *Cache) State(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.states[name]
	return v, ok
}

// WaitStates blocks until the next change signal and then returns the
// snapshot. Signals raised before the call are not observed.
func (c *Cache) WaitStates(ctx context.Context) (Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.signal.Wait():
	}
	return c.States(), nil
}

// Watch returns a StateWatcher that observes every signal raised after this
// call, including those raised while its owner is busy.
func (c *Cache) Watch() *StateWatcher {
	return &StateWatcher{cache: c, watcher: c.signal.Watch()}
}

// Notify raises the change signal. Drivers call it when an event resource
// has a new value; the event loop then re-reads event resources.
func (c *Cache) Notify() {
	c.signal.Notify()
}

func (c *Cache) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	counts := make(map[string]int)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.tick(ctx, counts)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one poll pass and raises the signal once if the pass changed
// anything, after every read of the pass has completed.
func (c *Cache) tick(ctx context.Context, counts map[string]int) {
	if c.pollOnce(ctx, counts) {
		c.metrics.ObserveChange(c.name, "poll")
		c.signal.Notify()
	}
}

// pollOnce runs one tick of the poll loop and reports whether the snapshot
// changed. counts holds the ticks left before each resource is re-read: a
// resource is read on first sight and then whenever its countdown reaches
// zero, so poll=N reads every N ticks and poll=0 every tick.
func (c *Cache) pollOnce(ctx context.Context, counts map[string]int) bool {
	changed := false
	present := make(map[string]struct{}, len(counts))

	for _, r := range c.resources.Values() {
		if ctx.Err() != nil {
			return false
		}
		name := r.Name()
		present[name] = struct{}{}
		if r.Event() || !resource.HasState(r) {
			continue
		}

		if count, seen := counts[name]; seen {
			if count--; count > 0 {
				counts[name] = count
				continue
			}
		}
		counts[name] = r.Poll()
		if c.update(name, c.read(ctx, "poll", r)) {
			changed = true
		}
	}

	for name := range counts {
		if _, ok := present[name]; !ok {
			delete(counts, name)
		}
	}
	if c.prune(present) {
		changed = true
	}
	return changed
}

func (c *Cache) eventLoop(ctx context.Context) {
	defer c.wg.Done()

	w := c.signal.Watch()
	for {
		if err := w.Next(ctx); err != nil {
			return
		}
		if c.refreshEvents(ctx) {
			c.metrics.ObserveChange(c.name, "event")
			c.signal.Notify()
		}
	}
}

func (c *Cache) refreshEvents(ctx context.Context) bool {
	changed := false
	for _, r := range c.resources.Values() {
		if ctx.Err() != nil {
			return false
		}
		if !r.Event() || !resource.HasState(r) {
			continue
		}
		if c.update(r.Name(), c.read(ctx, "event", r)) {
			changed = true
		}
	}
	return changed
}

// read fetches one resource state. Failures never escape: expected I/O
// failures are logged and cached as nil, anything else also goes to the
// fault notifier.
func (c *Cache) read(ctx context.Context, loop string, r resource.Resource) any {
	var (
		value any
		err   error
	)
	module := c.name + "." + loop
	if perr := fault.Guard(module, c.notify, func() {
		value, err = r.State(ctx)
	}); perr != nil {
		c.metrics.ObserveRead(c.name, perr)
		c.logger.Error("resource read panicked",
			"cache", c.name, "resource", r.Name(), "error", perr)
		return nil
	}

	c.metrics.ObserveRead(c.name, err)
	if err == nil {
		return value
	}

	if errors.Is(err, resource.ErrReadFailed) || errors.Is(err, resource.ErrUnavailable) || ctx.Err() != nil {
		c.logger.Warn("resource read failed",
			"cache", c.name, "resource", r.Name(), "error", err)
		return nil
	}

	c.logger.Error("unexpected resource read error",
		"cache", c.name, "resource", r.Name(), "error", err)
	c.notify.Notify(module, fmt.Errorf("reading %s: %w", r.Name(), err))
	return nil
}

// update stores value under name and reports whether the snapshot changed.
func (c *Cache) update(name string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.states[name]
	if ok && Equal(old, value) {
		return false
	}
	c.states[name] = value
	c.metrics.SetEntries(c.name, len(c.states))
	return true
}

// prune drops entries for resources no longer in the collection.
func (c *Cache) prune(present map[string]struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	for name := range c.states {
		if _, ok := present[name]; !ok {
			delete(c.states, name)
			changed = true
		}
	}
	if changed {
		c.metrics.SetEntries(c.name, len(c.states))
	}
	return changed
}

// StateWatcher delivers snapshots to a single consumer without losing
// change signals between calls.
type StateWatcher struct {
	cache   *Cache
	watcher *Watcher
}

// Next blocks until the signal fires (or has fired since the previous call)
// and returns the snapshot at that point.
func (w *StateWatcher) Next(ctx context.Context) (Snapshot, error) {
	if err := w.watcher.Next(ctx); err != nil {
		return nil, err
	}
	return w.cache.States(), nil
}
