package subscribe

import "errors"

var (
	// ErrTransport is returned when a remote service could not be reached.
	// It disables the client through its service sentinel.
	ErrTransport = errors.New("subscribe: transport error")

	// ErrStatus is returned when the remote answered with a non-200 status.
	// The client stays enabled.
	ErrStatus = errors.New("subscribe: unexpected status")

	// ErrInvalidAddr is returned for an address that is not host:port.
	ErrInvalidAddr = errors.New("subscribe: invalid address")
)
