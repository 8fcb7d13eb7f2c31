// Package influxdb provides InfluxDB connectivity for Gray Logic Sync.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, state telemetry and health monitoring.
//
// # Purpose
//
// Every state change seen by the recorder is written to the
// resource_state measurement, tagged with the service and resource name.
// Numeric and boolean states land in the "value" field, strings in "text".
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteState("kitchen", "tempA", 72, time.Now())
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Async
// write errors are delivered through SetOnError wrapped in ErrWriteFailed.
// Connection and health check errors are returned directly.
package influxdb
