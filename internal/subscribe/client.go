package subscribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sync/internal/resource"
	"github.com/nerrad567/gray-logic-sync/internal/state"
)

const (
	// DefaultTimeout bounds every outbound request.
	DefaultTimeout = 5 * time.Second

	// DefaultStatesPath is the bulk state endpoint of a publisher.
	DefaultStatesPath = "/states"

	// maxResponseSize caps the body read from a remote.
	maxResponseSize = 4 << 20
)

// Logger defines the logging interface for the subscriber.
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

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name is the remote service name advertisements are routed by.
	Name string

	// Addr is the remote host:port. It may be empty for a service that is
	// only located through discovery.
	Addr string

	// Cache keeps remote states locally; reads are served from the cache
	// until it is invalidated.
	Cache bool

	// WriteThrough updates the cache on write instead of invalidating it.
	// Ignored when Cache is off.
	WriteThrough bool

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client reads and writes the resources of one remote publisher.
//
// A new Client is disabled. It is enabled by its Service sentinel, either
// at startup or when the Watcher sees the remote advertise.
type Client struct {
	name         string
	cache        bool
	writeThrough bool
	http         *http.Client

	mu     sync.RWMutex
	addr   string
	states state.Snapshot
	notify func()

	enabled atomic.Bool
	service *Service

	logger  Logger
	metrics *metrics.Metrics
}

// NewClient creates a disabled client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		name:         cfg.Name,
		cache:        cfg.Cache,
		writeThrough: cfg.Cache && cfg.WriteThrough,
		http:         &http.Client{Timeout: cfg.Timeout},
		addr:         cfg.Addr,
		states:       state.Snapshot{},
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetMetrics attaches optional instrumentation.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// SetNotify sets the function raising the change signal of the cache the
// client's proxies belong to.
func (c *Client) SetNotify(notify func()) {
	c.mu.Lock()
	c.notify = notify
	c.mu.Unlock()
}

// Name returns the remote service name.
func (c *Client) Name() string { return c.name }

// Addr returns the current remote host:port.
func (c *Client) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// Enabled reports whether the client performs I/O.
func (c *Client) Enabled() bool { return c.enabled.Load() }

// Start enables the client. It reports whether the state changed.
func (c *Client) Start() bool {
	if !c.enabled.CompareAndSwap(false, true) {
		return false
	}
	c.metrics.SetRemoteEnabled(c.name, true)
	return true
}

// Stop disables the client and marks every cached state unknown. It reports
// whether the state changed.
func (c *Client) Stop() bool {
	if !c.enabled.CompareAndSwap(true, false) {
		return false
	}
	c.mu.Lock()
	for name := range c.states {
		c.states[name] = nil
	}
	c.mu.Unlock()
	c.metrics.SetRemoteEnabled(c.name, false)
	return true
}

// UpdateAddr points the client at a new host:port. Cached states are kept.
func (c *Client) UpdateAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddr, addr, err)
	}
	c.mu.Lock()
	old := c.addr
	c.addr = addr
	c.mu.Unlock()

	if old != addr {
		c.logger.Info("remote service relocated", "service", c.name, "from", old, "to", addr)
	}
	return nil
}

// Read returns the state of the remote resource addr. A disabled client
// returns nil without I/O.
func (c *Client) Read(ctx context.Context, addr string) (any, error) {
	if !c.Enabled() {
		c.metrics.ObserveRemote(c.name, "read", "disabled")
		return nil, nil
	}

	if c.cache {
		c.mu.RLock()
		v := c.states[addr]
		c.mu.RUnlock()
		if v != nil {
			return v, nil
		}
	}

	var body map[string]any
	if err := c.do(ctx, http.MethodGet, resourcePath(addr), nil, &body); err != nil {
		return nil, c.fail(ctx, "read", resource.ErrReadFailed, addr, err)
	}
	c.metrics.ObserveRemote(c.name, "read", "ok")

	v := body["state"]
	if c.cache {
		c.mu.Lock()
		c.states[addr] = v
		c.mu.Unlock()
	}
	return v, nil
}

// Write sets the state of the remote resource addr. A disabled client fails
// with resource.ErrUnavailable without I/O.
func (c *Client) Write(ctx context.Context, addr string, value any) error {
	if !c.Enabled() {
		c.metrics.ObserveRemote(c.name, "write", "disabled")
		return fmt.Errorf("%w: service %s", resource.ErrUnavailable, c.name)
	}

	if c.cache {
		c.mu.Lock()
		if c.writeThrough {
			c.states[addr] = value
		} else {
			delete(c.states, addr)
		}
		c.mu.Unlock()
		if c.writeThrough {
			c.signal()
		}
	}

	if err := c.do(ctx, http.MethodPut, resourcePath(addr), map[string]any{"state": value}, nil); err != nil {
		return c.fail(ctx, "write", resource.ErrWriteFailed, addr, err)
	}
	c.metrics.ObserveRemote(c.name, "write", "ok")
	return nil
}

// GetStates fetches every state of the remote in one request and stores
// them with SetStates. An empty path means DefaultStatesPath.
//
// The states are taken from the response key named after the last path
// segment when that key holds an object. The default path also accepts a
// flat name-to-state object. Any other response yields an empty snapshot.
func (c *Client) GetStates(ctx context.Context, path string) (state.Snapshot, error) {
	if path == "" {
		path = DefaultStatesPath
	}
	if !c.Enabled() {
		c.metrics.ObserveRemote(c.name, "states", "disabled")
		return nil, fmt.Errorf("%w: service %s", resource.ErrUnavailable, c.name)
	}

	var body map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, c.fail(ctx, "states", resource.ErrReadFailed, path, err)
	}
	c.metrics.ObserveRemote(c.name, "states", "ok")

	states := state.Snapshot{}
	key := path[strings.LastIndex(path, "/")+1:]
	if inner, ok := body[key].(map[string]any); ok {
		states = inner
	} else if path == DefaultStatesPath && body != nil {
		states = body
	}
	c.SetStates(states)
	return states, nil
}

// SetStates stores states in the client cache.
func (c *Client) SetStates(states state.Snapshot) {
	c.mu.Lock()
	for name, v := range states {
		c.states[name] = v
	}
	c.mu.Unlock()
}

// signal raises the change signal of the owning cache, if any.
func (c *Client) signal() {
	c.mu.RLock()
	notify := c.notify
	c.mu.RUnlock()
	if notify != nil {
		notify()
	}
}

// fail records a failed operation. Transport errors disable the service
// unless the caller gave up first.
func (c *Client) fail(ctx context.Context, op string, sentinel error, target string, err error) error {
	c.metrics.ObserveRemote(c.name, op, "error")
	if errors.Is(err, ErrTransport) && ctx.Err() == nil {
		c.logger.Warn("remote service unreachable", "service", c.name, "op", op, "target", target, "error", err)
		c.disable("transport error")
	} else {
		c.logger.Debug("remote request failed", "service", c.name, "op", op, "target", target, "error", err)
	}
	return fmt.Errorf("%w: %s %s: %w", sentinel, c.name, target, err)
}

// enable starts the client and reseeds its cache from the remote.
func (c *Client) enable(ctx context.Context) error {
	if c.Start() {
		c.logger.Info("remote service enabled", "service", c.name, "addr", c.Addr())
	}
	_, err := c.GetStates(ctx, "")
	c.signal()
	return err
}

func (c *Client) disable(reason string) {
	if c.service != nil {
		c.service.Disable(reason)
		return
	}
	c.Stop()
}

// do performs one request. Network and decoding failures wrap ErrTransport;
// a non-200 answer wraps ErrStatus.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.Addr()+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)) //nolint:errcheck // Draining for connection reuse
		return fmt.Errorf("%w: %s %s returned %d", ErrStatus, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decoding %s: %v", ErrTransport, path, err)
	}
	return nil
}

func resourcePath(addr string) string {
	return "/resources/" + url.PathEscape(addr) + "/state"
}
