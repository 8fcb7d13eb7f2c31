package resource

import (
	"context"
	"fmt"
)

// Standard attribute names served for every resource.
const (
	AttrName  = "name"
	AttrType  = "type"
	AttrLabel = "label"
	AttrGroup = "group"
	AttrPoll  = "poll"
	AttrEvent = "event"
	AttrState = "state"
)

// Attributer is implemented by resources exposing attributes beyond the
// standard set. Unknown names must return an error wrapping ErrNotFound.
type Attributer interface {
	Attribute(ctx context.Context, name string) (any, error)
	SetAttribute(ctx context.Context, name string, value any) error
}

// GetAttribute returns the named attribute of r.
//
// The standard attributes are dispatched directly; anything else is delegated
// to the Attributer capability when r implements it.
func GetAttribute(ctx context.Context, r Resource, name string) (any, error) {
	switch name {
	case AttrName:
		return r.Name(), nil
	case AttrType:
		return r.Type(), nil
	case AttrLabel:
		return r.Label(), nil
	case AttrGroup:
		return r.Group(), nil
	case AttrPoll:
		return r.Poll(), nil
	case AttrEvent:
		return r.Event(), nil
	case AttrState:
		return r.State(ctx)
	}
	if a, ok := r.(Attributer); ok {
		return a.Attribute(ctx, name)
	}
	return nil, fmt.Errorf("%w: %s has no attribute %q", ErrNotFound, r.Name(), name)
}

// SetAttribute applies value to the named attribute of r.
//
// Only the state attribute is settable among the standard attributes, and
// only on resources implementing Writer.
func SetAttribute(ctx context.Context, r Resource, name string, value any) error {
	switch name {
	case AttrState:
		w, ok := r.(Writer)
		if !ok {
			return fmt.Errorf("%w: %s", ErrReadOnly, r.Name())
		}
		return w.SetState(ctx, value)
	case AttrName, AttrType, AttrLabel, AttrGroup, AttrPoll, AttrEvent:
		return fmt.Errorf("%w: %s.%s", ErrReadOnly, r.Name(), name)
	}
	if a, ok := r.(Attributer); ok {
		return a.SetAttribute(ctx, name, value)
	}
	return fmt.Errorf("%w: %s has no attribute %q", ErrNotFound, r.Name(), name)
}
