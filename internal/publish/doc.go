// Package publish serves a state cache to the network.
//
// A Server exposes the cache over a small JSON HTTP interface and, when
// advertising is enabled, pushes unsolicited advertisements: the first
// carries the full resource list and snapshot, later ones carry only the
// states that changed since the previous message and the resource list only
// when the set of names changed. A trigger loop raises the cache's change
// signal every advertisement interval so a heartbeat goes out even when
// nothing changes.
//
// Routes:
//
//	GET /                        ["service","resources","states"]
//	GET /resources[?expand]      resource directory
//	GET /resources/{name}        resource definition
//	GET /resources/{name}/{attr} {attr: value}
//	PUT /resources/{name}/{attr} body {attr: value}
//	GET /states                  flat snapshot
//	GET /service                 service record
//	GET /history/{name}          recorded changes (when a store is attached)
//	GET /ws                      advertisement stream
//	GET /metrics                 Prometheus metrics
//	GET /health
//
// Any other path answers 404 and any method other than GET or PUT answers 501.
//
// Lifecycle:
//
//	srv, err := publish.New(deps)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Close()
package publish
