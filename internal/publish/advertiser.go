package publish

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/advert"
	"github.com/nerrad567/gray-logic-sync/internal/resource"
	"github.com/nerrad567/gray-logic-sync/internal/state"
)

// sendTimeout bounds one advertisement on one transport.
const sendTimeout = 5 * time.Second

// advertise sends the full resource list and snapshot once, then one
// message per change signal. States are sent as a diff against the last
// sent snapshot, and resources only when the set of names changed.
func (s *Server) advertise(ctx context.Context) {
	defer s.wg.Done()

	watch := s.cache.Watch()

	names := s.resources.Names()
	last := s.cache.States()
	now := s.now().Unix()

	s.mu.Lock()
	s.stateTimestamp = now
	s.resourceTimestamp = now
	s.mu.Unlock()

	s.send(ctx, s.resources.Dump(false), last, "full")

	for {
		current, err := watch.Next(ctx)
		if err != nil {
			return
		}

		var defs []resource.Definition
		diff := state.Diff(last, current, true)
		if len(diff) > 0 {
			s.mu.Lock()
			s.stateTimestamp = s.now().Unix()
			s.mu.Unlock()
		} else {
			diff = nil
		}

		if n := s.resources.Names(); !state.SameNames(names, n) {
			names = n
			defs = s.resources.Dump(false)
			s.mu.Lock()
			s.resourceTimestamp = s.now().Unix()
			s.mu.Unlock()
		}

		last = current
		s.send(ctx, defs, diff, "diff")
	}
}

// trigger raises the cache's change signal every advertisement interval so
// an advertisement goes out even when nothing changes.
func (s *Server) trigger(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cache.Notify()
		}
	}
}

// send builds one message around the current service record and hands it
// to every transport. The sequence number advances on every attempt,
// whether or not the transports succeed.
func (s *Server) send(ctx context.Context, defs []resource.Definition, states state.Snapshot, kind string) {
	s.mu.Lock()
	msg := advert.Message{
		Service:   s.serviceLocked(),
		Resources: defs,
		States:    states,
	}
	s.seq++
	s.mu.Unlock()

	data, err := advert.Encode(msg)
	if err != nil {
		s.logger.Error("encoding advertisement", "error", err)
		return
	}
	s.metrics.ObserveAdvertStates(kind, len(states))

	for _, t := range s.transports {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := t.Send(sendCtx, data)
		cancel()

		s.metrics.ObserveAdvert(t.Name(), err)
		if err != nil {
			s.logger.Warn("advertisement failed",
				"transport", t.Name(),
				"seq", msg.Service.Seq,
				"error", err,
			)
		}
	}
	s.hub.Broadcast(data)

	s.logger.Debug("advertisement sent",
		"seq", msg.Service.Seq,
		"states", len(states),
		"resources", len(defs),
	)
}
