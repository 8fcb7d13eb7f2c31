package resource

import (
	"context"
	"sync"
)

// Variable is an in-memory writable resource such as a setpoint or a mode.
//
// Its value survives restarts only through the store; the application loads
// persisted values with Restore before the cache starts. Every SetState runs
// the change hook so event-driven caches pick the new value up immediately.
type Variable struct {
	Base
	mu       sync.RWMutex
	value    any
	onChange func()
}

// NewVariable creates a variable holding initial. Variables are always
// event-driven.
func NewVariable(m Meta, initial any) *Variable {
	m.Event = true
	return &Variable{Base: NewBase(m), value: initial}
}

// State implements Resource.
func (v *Variable) State(context.Context) (any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, nil
}

// SetState implements Writer.
func (v *Variable) SetState(_ context.Context, value any) error {
	v.mu.Lock()
	v.value = value
	hook := v.onChange
	v.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// Restore sets the value without running the change hook.
func (v *Variable) Restore(value any) {
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
}

// SetOnChange sets the hook run after every SetState, typically the cache's
// Notify.
func (v *Variable) SetOnChange(hook func()) {
	v.mu.Lock()
	v.onChange = hook
	v.mu.Unlock()
}
