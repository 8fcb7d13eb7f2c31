// Package metrics exposes Prometheus instrumentation for Gray Logic Sync.
//
// Each process builds one Metrics with its own registry; the publisher
// mounts Handler at /metrics. Counters cover cache reads and changes,
// advertisements, HTTP requests, remote service calls and faults.
package metrics
