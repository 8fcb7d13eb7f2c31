package state

import (
	"context"
	"sync"
)

// Signal is a broadcast change event.
//
// Each Notify closes the current generation's channel and installs a fresh
// one, so every goroutine blocked in Wait wakes exactly once per Notify and
// any number of waiters can coexist.
type Signal struct {
	mu  sync.Mutex
	gen uint64
	ch  chan struct{}
}

// NewSignal creates a Signal with no pending notification.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Notify wakes every current waiter.
func (s *Signal) Notify() {
	s.mu.Lock()
	s.gen++
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// Wait returns a channel that is closed by the next Notify. Notifications
// raised before the call are not observed.
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Generation returns the number of Notify calls so far.
func (s *Signal) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Watch returns a Watcher positioned at the current generation.
func (s *Signal) Watch() *Watcher {
	return &Watcher{signal: s, seen: s.Generation()}
}

// Watcher follows a Signal without losing notifications: a Notify raised
// while the owner was busy makes the next Next return immediately.
//
// A Watcher must only be used by one goroutine.
type Watcher struct {
	signal *Signal
	seen   uint64
}

// Next blocks until the signal has been notified since the previous call
// (or since the Watcher was created), or ctx is done.
func (w *Watcher) Next(ctx context.Context) error {
	w.signal.mu.Lock()
	if w.signal.gen != w.seen {
		w.seen = w.signal.gen
		w.signal.mu.Unlock()
		return nil
	}
	ch := w.signal.ch
	w.signal.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	}

	w.seen = w.signal.Generation()
	return nil
}
