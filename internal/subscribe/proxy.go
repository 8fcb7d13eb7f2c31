package subscribe

import (
	"context"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
)

// Proxy is a local resource standing in for a resource of a remote host.
// Proxies are event-driven: the watcher and the client raise the change
// signal when remote states arrive.
type Proxy struct {
	resource.Base
	client *Client
	addr   string
}

// NewProxy creates a proxy for the remote resource addr. An empty addr
// means the remote resource has the same name as the proxy.
func NewProxy(m resource.Meta, client *Client, addr string) *Proxy {
	m.Event = true
	if addr == "" {
		addr = m.Name
	}
	return &Proxy{Base: resource.NewBase(m), client: client, addr: addr}
}

// Addr returns the remote resource name.
func (p *Proxy) Addr() string { return p.addr }

// State implements resource.Resource.
func (p *Proxy) State(ctx context.Context) (any, error) {
	return p.client.Read(ctx, p.addr)
}

// SetState implements resource.Writer.
func (p *Proxy) SetState(ctx context.Context, value any) error {
	return p.client.Write(ctx, p.addr, value)
}
