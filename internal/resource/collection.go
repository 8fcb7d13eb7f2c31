package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Collection is a name-keyed set of resources guarded by a single lock.
//
// Collections are small (tens to low hundreds of entries) and mutation is
// rare after startup, so one coarse mutex covers every access. Iteration
// always works on a copy taken under the lock.
//
// A Collection is itself a Resource of type "collection" so collections can
// be nested; it has no state of its own.
//
// All public methods are thread-safe.
type Collection struct {
	Base
	mu        sync.Mutex
	resources map[string]Resource
}

// NewCollection creates an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{
		Base:      NewBase(Meta{Name: name, Type: TypeCollection}),
		resources: make(map[string]Resource),
	}
}

// Add inserts r, replacing any resource with the same name.
func (c *Collection) Add(r Resource) {
	c.mu.Lock()
	c.resources[r.Name()] = r
	c.mu.Unlock()
}

// Remove deletes the named resource. It reports whether it was present.
func (c *Collection) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.resources[name]
	delete(c.resources, name)
	return ok
}

// Get returns the named resource or ErrNotFound.
func (c *Collection) Get(name string) (Resource, error) {
	c.mu.Lock()
	r, ok := c.resources[name]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r, nil
}

// Len returns the number of resources.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resources)
}

// Values returns the resources ordered by name.
func (c *Collection) Values() []Resource {
	c.mu.Lock()
	values := make([]Resource, 0, len(c.resources))
	for _, r := range c.resources {
		values = append(values, r)
	}
	c.mu.Unlock()

	sort.Slice(values, func(i, j int) bool { return values[i].Name() < values[j].Name() })
	return values
}

// Names returns the sorted resource names.
func (c *Collection) Names() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	c.mu.Unlock()

	sort.Strings(names)
	return names
}

// Dump returns the definitions of every resource. Expanded dumps include the
// members of composite resources.
func (c *Collection) Dump(expand bool) []Definition {
	values := c.Values()
	defs := make([]Definition, 0, len(values))
	for _, r := range values {
		defs = append(defs, Describe(r, expand))
	}
	return defs
}

// Members implements Composite.
func (c *Collection) Members() []Resource {
	return c.Values()
}

// State implements Resource. Collections have no state.
func (c *Collection) State(context.Context) (any, error) {
	return nil, nil
}
