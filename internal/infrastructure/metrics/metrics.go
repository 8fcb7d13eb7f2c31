package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graysync"

// Metrics holds the Prometheus collectors for one process.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional metrics dependency without guarding each call.
type Metrics struct {
	registry *prometheus.Registry

	cacheReads      *prometheus.CounterVec
	cacheReadErrors *prometheus.CounterVec
	cacheChanges    *prometheus.CounterVec
	cacheEntries    *prometheus.GaugeVec

	adverts      *prometheus.CounterVec
	advertErrors *prometheus.CounterVec
	advertStates *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	remoteRequests *prometheus.CounterVec
	remoteEnabled  *prometheus.GaugeVec

	faults *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "reads_total",
				Help:      "Resource reads performed by a state cache.",
			},
			[]string{"cache"},
		),
		cacheReadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "read_errors_total",
				Help:      "Resource reads that failed and were cached as unknown.",
			},
			[]string{"cache"},
		),
		cacheChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "changes_total",
				Help:      "Cache passes that changed at least one state.",
			},
			[]string{"cache", "loop"},
		),
		cacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Number of states held by a cache.",
			},
			[]string{"cache"},
		),
		adverts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "advert",
				Name:      "sent_total",
				Help:      "Advertisements sent per transport.",
			},
			[]string{"transport"},
		),
		advertErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "advert",
				Name:      "errors_total",
				Help:      "Advertisement send failures per transport.",
			},
			[]string{"transport"},
		),
		advertStates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "advert",
				Name:      "states_total",
				Help:      "State entries carried by advertisements.",
			},
			[]string{"kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests handled by the publisher.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration observed by the publisher.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		remoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "requests_total",
				Help:      "Requests made to remote services by outcome.",
			},
			[]string{"service", "op", "result"},
		),
		remoteEnabled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "enabled",
				Help:      "Whether a remote service client is enabled (1) or disabled (0).",
			},
			[]string{"service"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "faults_total",
				Help:      "Unexpected faults reported to the fault hub.",
			},
			[]string{"module"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheReads, m.cacheReadErrors, m.cacheChanges, m.cacheEntries,
		m.adverts, m.advertErrors, m.advertStates,
		m.httpRequests, m.httpDuration,
		m.remoteRequests, m.remoteEnabled,
		m.faults,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRead counts one resource read by cache.
func (m *Metrics) ObserveRead(cache string, err error) {
	if m == nil {
		return
	}
	m.cacheReads.WithLabelValues(cache).Inc()
	if err != nil {
		m.cacheReadErrors.WithLabelValues(cache).Inc()
	}
}

// ObserveChange counts a cache pass that changed states.
func (m *Metrics) ObserveChange(cache, loop string) {
	if m == nil {
		return
	}
	m.cacheChanges.WithLabelValues(cache, loop).Inc()
}

// SetEntries records the size of a cache.
func (m *Metrics) SetEntries(cache string, n int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// ObserveAdvert counts an advertisement attempt on transport.
func (m *Metrics) ObserveAdvert(transport string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.advertErrors.WithLabelValues(transport).Inc()
		return
	}
	m.adverts.WithLabelValues(transport).Inc()
}

// ObserveAdvertStates counts state entries carried by an advertisement.
// kind is "full" for the first message and "diff" afterwards.
func (m *Metrics) ObserveAdvertStates(kind string, n int) {
	if m == nil {
		return
	}
	m.advertStates.WithLabelValues(kind).Add(float64(n))
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRemote counts a request to a remote service. result is one of
// "ok", "error" or "disabled".
func (m *Metrics) ObserveRemote(service, op, result string) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(service, op, result).Inc()
}

// SetRemoteEnabled records whether a remote client is enabled.
func (m *Metrics) SetRemoteEnabled(service string, enabled bool) {
	if m == nil {
		return
	}
	v := 0.0
	if enabled {
		v = 1
	}
	m.remoteEnabled.WithLabelValues(service).Set(v)
}

// ObserveFault counts a fault reported by module.
func (m *Metrics) ObserveFault(module string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(module).Inc()
}
