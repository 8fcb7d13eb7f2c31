// Package fault carries unexpected errors from background loops up to the
// owning application.
//
// Long-running loops never terminate on an unexpected error. They log it and
// hand it to an optional Notifier; the application decides whether that
// marks anything as degraded (for example the publisher's service record).
package fault

import (
	"fmt"
	"runtime/debug"
)

// Notifier receives an unexpected error raised by a background module.
// A nil Notifier is valid and discards everything.
type Notifier func(module string, err error)

// Notify calls n if it is set.
func (n Notifier) Notify(module string, err error) {
	if n != nil && err != nil {
		n(module, err)
	}
}

// PanicError is the error reported for a panic recovered by Guard.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Guard runs fn and converts a panic into an error reported through n.
// It returns the reported error, or nil when fn completed normally.
func Guard(module string, n Notifier, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			n.Notify(module, err)
		}
	}()
	fn()
	return nil
}
