package subscribe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/nerrad567/gray-logic-sync/internal/advert"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/mqtt"
)

// Watcher routes advertisements to the clients of the advertising services.
type Watcher struct {
	mu      sync.RWMutex
	clients map[string]*Client

	logger  Logger
	metrics *metrics.Metrics
}

// NewWatcher creates a watcher with no registered services.
func NewWatcher() *Watcher {
	return &Watcher{
		clients: make(map[string]*Client),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

// SetMetrics attaches optional instrumentation.
func (w *Watcher) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// Register routes advertisements of the client's service to it. The client
// should already have its notify function.
func (w *Watcher) Register(client *Client) {
	w.mu.Lock()
	w.clients[client.Name()] = client
	w.mu.Unlock()
}

// Handle applies one advertisement. Advertisements of unknown services are
// ignored. The client is relocated when the advertised address differs,
// enabled (and reseeded) when disabled, and otherwise handed the advertised
// state changes.
func (w *Watcher) Handle(ctx context.Context, msg advert.Message, from net.IP) {
	w.mu.RLock()
	client, ok := w.clients[msg.Service.Name]
	w.mu.RUnlock()
	if !ok {
		return
	}
	if msg.Service.Port <= 0 {
		w.logger.Debug("advertisement without port", "service", msg.Service.Name)
		return
	}

	host := msg.Service.Hostname
	if from != nil {
		host = from.String()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(msg.Service.Port))
	if addr != client.Addr() {
		if err := client.UpdateAddr(addr); err != nil {
			w.logger.Warn("ignoring advertisement", "service", msg.Service.Name, "error", err)
			return
		}
	}
	w.metrics.ObserveRemote(client.Name(), "advert", "ok")

	if !client.Enabled() {
		if err := client.enable(ctx); err != nil {
			w.logger.Warn("re-enabling remote service", "service", client.Name(), "error", err)
		}
		return
	}

	if len(msg.States) > 0 {
		client.SetStates(msg.States)
		client.signal()
	}
}

// Run feeds advertisements from a multicast listener into Handle until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context, l *advert.Listener) error {
	return l.Run(ctx, func(msg advert.Message, from net.IP) {
		w.Handle(ctx, msg, from)
	})
}

// MQTTHandler returns a handler for advertisements mirrored to the broker.
// The sender address is not known there, so the advertised hostname is used.
func (w *Watcher) MQTTHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		msg, err := advert.Decode(payload)
		if err != nil {
			return fmt.Errorf("advert on %s: %w", topic, err)
		}
		w.Handle(ctx, msg, nil)
		return nil
	}
}
