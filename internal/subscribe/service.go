package subscribe

import (
	"context"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
)

// Service is the sentinel resource representing reachability of a remote
// host. Its state is 1 while the client is enabled and 0 otherwise.
// Writing a truthy value enables the client, anything else disables it.
type Service struct {
	resource.Base
	client *Client
}

// NewService creates the sentinel for client and binds it, so transport
// errors on the client disable the service.
func NewService(m resource.Meta, client *Client) *Service {
	m.Type = resource.TypeService
	m.Event = true
	if m.Name == "" {
		m.Name = client.Name()
	}
	s := &Service{Base: resource.NewBase(m), client: client}
	client.service = s
	return s
}

// Client returns the client the sentinel controls.
func (s *Service) Client() *Client { return s.client }

// State implements resource.Resource.
func (s *Service) State(context.Context) (any, error) {
	if s.client.Enabled() {
		return 1, nil
	}
	return 0, nil
}

// SetState implements resource.Writer.
func (s *Service) SetState(ctx context.Context, value any) error {
	if truthy(value) {
		return s.Enable(ctx)
	}
	s.Disable("disabled by request")
	return nil
}

// Enable starts the client and reseeds its cache from the remote. A reseed
// that fails on transport disables the service again and returns the error.
func (s *Service) Enable(ctx context.Context) error {
	return s.client.enable(ctx)
}

// Disable stops the client. Every proxy of the remote reads nil until the
// service is enabled again.
func (s *Service) Disable(reason string) {
	if !s.client.Stop() {
		return
	}
	s.client.logger.Warn("remote service disabled", "service", s.client.Name(), "reason", reason)
	s.client.signal()
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0" && x != "false"
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
