package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// StateMeasurement is the measurement resource states are written to.
const StateMeasurement = "resource_state"

// StateFields converts a resource state into InfluxDB fields.
//
// Numbers are written to "value" and booleans to "value" as 0 or 1.
// Strings go to "text". Unknown states (nil) and other types are skipped.
func StateFields(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case bool:
		f := 0.0
		if v {
			f = 1
		}
		return map[string]any{"value": f}, true
	case string:
		return map[string]any{"text": v}, true
	case int:
		return map[string]any{"value": float64(v)}, true
	case int64:
		return map[string]any{"value": float64(v)}, true
	case float32:
		return map[string]any{"value": float64(v)}, true
	case float64:
		return map[string]any{"value": v}, true
	default:
		return nil, false
	}
}

// WriteState queues one resource state change, tagged with the service and
// resource name. It reports false, writing nothing, when the value has no
// field representation or the client is closed.
//
//	client.WriteState("kitchen", "tempA", 72, time.Now())
//	client.WriteState("kitchen", "doorOpen", true, time.Now())
func (c *Client) WriteState(service, resource string, value any, ts time.Time) bool {
	fields, ok := StateFields(value)
	if !ok || !c.IsConnected() {
		return false
	}
	c.writeAPI.WritePoint(write.NewPoint(StateMeasurement,
		map[string]string{"service": service, "resource": resource},
		fields,
		ts,
	))
	return true
}
