// Package resource defines the Resource capability contract and the
// Collection that groups resources under a namespace.
//
// A Resource is anything with a name and a readable state: a temperature
// sensor, a relay, an OS metric, a proxy for a resource on another host. The
// state cache, publisher and subscriber only ever see resources through this
// contract; drivers live elsewhere.
//
// # Key Types
//
//   - Resource: metadata (name, type, label, group, poll, event) plus State
//   - Writer: optional SetState capability
//   - Composite: resources that contain other resources (collections)
//   - Attributer: optional extra attributes for the HTTP attribute protocol
//   - Collection: name-keyed, lock-guarded set of resources
//   - Sensor, Control, Variable: small adapters for drivers and tests
//
// # Usage
//
//	resources := resource.NewCollection("resources")
//	resources.Add(resource.NewSensor(resource.Meta{Name: "tempA", Poll: 10},
//	    func(ctx context.Context) (any, error) { return thermometer.Read(ctx) }))
//
//	r, err := resources.Get("tempA")
//	if errors.Is(err, resource.ErrNotFound) {
//	    // ...
//	}
//
// # Attributes
//
// GetAttribute and SetAttribute dispatch the standard attributes by name
// without reflection. Only "state" is writable among them.
package resource
