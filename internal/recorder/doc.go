// Package recorder follows a state cache and writes every change out.
//
// For each change the recorder appends history rows to the store, saves the
// values of persistent variables, writes numeric and boolean states to
// InfluxDB and publishes retained per-resource state topics to MQTT. Every
// sink is optional. Store failures are reported through the fault notifier;
// telemetry sinks are best effort.
package recorder
