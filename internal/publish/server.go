package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-sync/internal/advert"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sync/internal/resource"
	"github.com/nerrad567/gray-logic-sync/internal/state"
	"github.com/nerrad567/gray-logic-sync/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultRetryInterval applies when the configured bind retry is not positive.
const defaultRetryInterval = 10 * time.Second

// HistoryReader serves GET /history/{name}. Implemented by *store.Store.
type HistoryReader interface {
	History(ctx context.Context, name string, limit int) ([]store.Entry, error)
}

// Deps holds the dependencies required by the publisher.
type Deps struct {
	Config  config.ServiceConfig
	WS      config.WebSocketConfig
	Cache   *state.Cache
	Logger  *logging.Logger
	Metrics *metrics.Metrics

	// MetricsPath is where Metrics is served. Defaults to /metrics.
	MetricsPath string

	// History is optional; without it /history answers 404.
	History HistoryReader

	// Transports receive every advertisement in addition to the WebSocket
	// stream. The server takes ownership and closes them on Close.
	Transports []advert.Transport

	// Hostname is advertised in the service record. Defaults to os.Hostname.
	Hostname string
	Version  string
}

// Server publishes one state cache: the HTTP query interface plus
// unsolicited advertisements of state diffs.
type Server struct {
	cfg        config.ServiceConfig
	wsCfg      config.WebSocketConfig
	cache      *state.Cache
	resources  *resource.Collection
	logger     *logging.Logger
	metrics    *metrics.Metrics
	metricsAt  string
	history    HistoryReader
	transports []advert.Transport
	hub        *Hub
	hostname   string
	version    string

	retry    time.Duration
	interval time.Duration
	now      func() time.Time

	mu                sync.Mutex
	port              int
	label             string
	stateTimestamp    int64
	resourceTimestamp int64
	seq               uint64
	fault             bool

	started atomic.Bool
	server  *http.Server
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a publisher with the given dependencies.
// The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Cache == nil {
		return nil, fmt.Errorf("state cache is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Config.Name == "" {
		deps.Config.Name = deps.Cache.Name()
	}
	if deps.Hostname == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		deps.Hostname = host
	}
	if len(deps.Config.Ports) == 0 {
		deps.Config.Ports = []int{0}
	}
	if deps.WS.Path == "" {
		deps.WS.Path = "/ws"
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		cache:      deps.Cache,
		resources:  deps.Cache.Resources(),
		logger:     deps.Logger.Component("publish"),
		metrics:    deps.Metrics,
		metricsAt:  deps.MetricsPath,
		history:    deps.History,
		transports: deps.Transports,
		hostname:   deps.Hostname,
		version:    deps.Version,
		retry:      seconds(deps.Config.RetryInterval, defaultRetryInterval),
		interval:   seconds(deps.Config.Advert.Interval, time.Minute),
		now:        time.Now,
		label:      deps.Config.Label,
	}
	s.hub = NewHub(deps.WS, s.logger)
	return s, nil
}

// Start starts the cache (unless already running), binds the HTTP listener
// and, when advertising is enabled, launches the advertisement and trigger
// loops.
//
// Binding tries every configured port in order and sleeps the retry
// interval between rounds. Bind failures are logged, never fatal; Start only
// gives up when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if !s.cache.Started() {
		if err := s.cache.Start(ctx); err != nil && !errors.Is(err, state.ErrAlreadyStarted) {
			return fmt.Errorf("starting state cache: %w", err)
		}
	}

	ln, err := s.bind(ctx)
	if err != nil {
		return err
	}
	port := ln.Addr().(*net.TCPAddr).Port

	s.mu.Lock()
	s.port = port
	if s.label == "" {
		s.label = s.hostname + ":" + strconv.Itoa(port)
	}
	s.mu.Unlock()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("publish server error", "error", err)
		}
	}()

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(loopCtx)
	}()

	if s.cfg.Advert.Enabled {
		s.wg.Add(2)
		go s.advertise(loopCtx)
		go s.trigger(loopCtx)
	}

	s.logger.Info("publish server started",
		"service", s.cfg.Name,
		"port", port,
		"advert", s.cfg.Advert.Enabled,
	)
	return nil
}

// bind returns a listener on the first candidate port that accepts.
func (s *Server) bind(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	for {
		for _, port := range s.cfg.Ports {
			addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
			ln, err := lc.Listen(ctx, "tcp", addr)
			if err == nil {
				return ln, nil
			}
			s.logger.Debug("bind failed", "addr", addr, "error", err)
		}

		s.logger.Warn("publish server could not bind",
			"error", ErrBind,
			"ports", s.cfg.Ports,
			"retry_in", s.retry,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retry):
		}
	}
}

// Close stops the advertisement loops, shuts the HTTP server down
// gracefully and closes every transport.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var errs []error
	for _, t := range s.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s transport: %w", t.Name(), err))
		}
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("publish server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down publish server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HealthCheck reports whether the server is listening.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish health check: %w", err)
	}
	if s.Port() == 0 {
		return fmt.Errorf("publish server not started")
	}
	return nil
}

// Port returns the bound HTTP port, or 0 before Start bound one.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// SetFault marks the advertised service record as faulted (or healthy).
func (s *Server) SetFault(fault bool) {
	s.mu.Lock()
	s.fault = fault
	s.mu.Unlock()
}

// ServiceData returns the current service record.
func (s *Server) ServiceData() advert.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serviceLocked()
}

func (s *Server) serviceLocked() advert.Service {
	return advert.Service{
		Name:              s.cfg.Name,
		Hostname:          s.hostname,
		Port:              s.port,
		Label:             s.label,
		StateTimestamp:    s.stateTimestamp,
		ResourceTimestamp: s.resourceTimestamp,
		Seq:               s.seq,
		Fault:             s.fault,
	}
}

// Hub returns the WebSocket advertisement hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
