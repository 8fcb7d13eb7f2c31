package resource

import (
	"context"
	"slices"
)

// Resource types with special handling.
const (
	// TypeSchedule, TypeCollection and TypeTask resources have no state and
	// never get a state cache entry.
	TypeSchedule   = "schedule"
	TypeCollection = "collection"
	TypeTask       = "task"

	// TypeService marks the sentinel resource representing reachability of a
	// remote host.
	TypeService = "service"
)

// Resource is a named sensor, control or computed value with a readable state.
//
// Implementations are created and owned by the application or driver layer.
// State caches only hold references and never construct or destroy them.
type Resource interface {
	Name() string
	Type() string
	Label() string
	Group() []string

	// Poll is the number of cache cycles between forced re-reads.
	// Zero means every cycle.
	Poll() int

	// Event reports whether the resource pushes changes (by raising the
	// cache's change signal) instead of being polled.
	Event() bool

	// State returns the current value: a JSON-compatible scalar, or nil when
	// unknown. Failures wrap ErrReadFailed.
	State(ctx context.Context) (any, error)
}

// Writer is implemented by resources whose state can be set.
type Writer interface {
	SetState(ctx context.Context, value any) error
}

// Composite is implemented by resources that contain other resources.
type Composite interface {
	Members() []Resource
}

// HasState reports whether r takes part in state caching.
func HasState(r Resource) bool {
	switch r.Type() {
	case TypeSchedule, TypeCollection, TypeTask:
		return false
	default:
		return true
	}
}

// Meta holds the descriptive attributes shared by every resource.
type Meta struct {
	Name  string
	Type  string
	Label string
	Group []string
	Poll  int
	Event bool
}

// Base implements the metadata half of Resource. Concrete resources embed it
// and supply State.
type Base struct {
	meta Meta
}

// NewBase returns a Base for the given metadata.
func NewBase(m Meta) Base {
	m.Group = slices.Clone(m.Group)
	return Base{meta: m}
}

// Name returns the unique resource name.
func (b Base) Name() string { return b.meta.Name }

// Type returns the resource type, such as "sensor" or "schedule".
func (b Base) Type() string { return b.meta.Type }

// Label returns the human-readable label.
func (b Base) Label() string { return b.meta.Label }

// Group returns a copy of the group names the resource belongs to.
func (b Base) Group() []string { return slices.Clone(b.meta.Group) }

// Poll returns the number of cache cycles between re-reads.
func (b Base) Poll() int { return b.meta.Poll }

// Event reports whether the resource pushes its own changes.
func (b Base) Event() bool { return b.meta.Event }

// ReadFunc produces the current value of a resource.
type ReadFunc func(ctx context.Context) (any, error)

// WriteFunc applies a new value to a resource.
type WriteFunc func(ctx context.Context, value any) error

// Sensor is a read-only resource backed by a ReadFunc.
type Sensor struct {
	Base
	read ReadFunc
}

// NewSensor creates a sensor that reads its state with read.
func NewSensor(m Meta, read ReadFunc) *Sensor {
	return &Sensor{Base: NewBase(m), read: read}
}

// State implements Resource.
func (s *Sensor) State(ctx context.Context) (any, error) {
	return s.read(ctx)
}

// Control is a sensor that can also be written.
type Control struct {
	Sensor
	write WriteFunc
}

// NewControl creates a writable resource.
func NewControl(m Meta, read ReadFunc, write WriteFunc) *Control {
	return &Control{Sensor: Sensor{Base: NewBase(m), read: read}, write: write}
}

// SetState implements Writer.
func (c *Control) SetState(ctx context.Context, value any) error {
	return c.write(ctx, value)
}

// Definition is the serialisable description of a resource.
type Definition struct {
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	Label     string       `json:"label,omitempty"`
	Group     []string     `json:"group,omitempty"`
	Poll      int          `json:"poll"`
	Event     bool         `json:"event"`
	Resources []Definition `json:"resources,omitempty"`
}

// Describe returns the definition of r. When expand is true, members of
// composite resources are described recursively.
func Describe(r Resource, expand bool) Definition {
	def := Definition{
		Name:  r.Name(),
		Type:  r.Type(),
		Label: r.Label(),
		Group: r.Group(),
		Poll:  r.Poll(),
		Event: r.Event(),
	}
	if !expand {
		return def
	}
	if c, ok := r.(Composite); ok {
		for _, m := range c.Members() {
			def.Resources = append(def.Resources, Describe(m, true))
		}
	}
	return def
}
