package advert

import (
	"context"
	"fmt"
)

// Publisher is the slice of the MQTT client used to mirror advertisements.
type Publisher interface {
	PublishQoS(topic string, payload []byte) error
}

// MQTT mirrors advertisements to a broker topic. Messages are not retained
// because they carry diffs, not full state.
type MQTT struct {
	pub   Publisher
	topic string
}

// NewMQTT creates a transport publishing to topic.
func NewMQTT(pub Publisher, topic string) *MQTT {
	return &MQTT{pub: pub, topic: topic}
}

// Name implements Transport.
func (m *MQTT) Name() string { return "mqtt" }

// Topic returns the publish topic.
func (m *MQTT) Topic() string { return m.topic }

// Send implements Transport.
func (m *MQTT) Send(_ context.Context, data []byte) error {
	if err := m.pub.PublishQoS(m.topic, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Close implements Transport. The MQTT client is owned by the caller.
func (m *MQTT) Close() error { return nil }
