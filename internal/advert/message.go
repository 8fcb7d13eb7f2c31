package advert

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
	"github.com/nerrad567/gray-logic-sync/internal/state"
)

// Service identifies the advertising host. It is regenerated for every
// message.
type Service struct {
	Name              string `json:"name"`
	Hostname          string `json:"hostname"`
	Port              int    `json:"port"`
	Label             string `json:"label"`
	StateTimestamp    int64  `json:"statetimestamp"`
	ResourceTimestamp int64  `json:"resourcetimestamp"`
	Seq               uint64 `json:"seq"`
	Fault             bool   `json:"fault"`
}

// Message is one advertisement. Service is always present; Resources is set
// when the resource set changed and States carries the changed states only.
type Message struct {
	Service   Service               `json:"service"`
	Resources []resource.Definition `json:"resources,omitzero"`
	States    state.Snapshot        `json:"states,omitzero"`
}

// Encode serialises m for the wire.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding advertisement: %w", err)
	}
	return data, nil
}

// Decode parses a datagram. Messages without a service name are rejected.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Service.Name == "" {
		return Message{}, fmt.Errorf("%w: missing service name", ErrMalformed)
	}
	return m, nil
}
