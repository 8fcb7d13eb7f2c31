// Package subscribe follows resources published by a remote host.
//
// A Client talks to one remote publisher over HTTP and keeps a local cache
// of remote states keyed by remote resource name. Proxy resources expose
// individual remote resources to a local state cache; a Service sentinel
// represents reachability of the host. Any transport error disables the
// Service, which disables the Client: from then on every proxy of that host
// reads nil without network I/O and writes fail fast with
// resource.ErrUnavailable.
//
// A Watcher consumes advertisements (multicast or MQTT) and routes them by
// service name: it relocates clients whose host moved, re-enables disabled
// clients when their host advertises again, and applies advertised state
// diffs to the client caches.
//
// Typical wiring for one remote:
//
//	client := subscribe.NewClient(subscribe.ClientConfig{Name: "garage", Addr: "10.0.0.5:7378", Cache: true})
//	svc := subscribe.NewService(resource.Meta{Name: "garage"}, client)
//	remote.Add(svc)
//	remote.Add(subscribe.NewProxy(resource.Meta{Name: "garageDoor"}, client, "door"))
//	client.SetNotify(remoteCache.Notify)
//	watcher.Register(client)
package subscribe
