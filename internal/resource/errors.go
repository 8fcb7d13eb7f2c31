package resource

import "errors"

// Domain errors for the resource package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, resource.ErrNotFound) {
//	    // respond 404
//	}
var (
	// ErrNotFound is returned when a resource or attribute name does not exist.
	ErrNotFound = errors.New("resource: not found")

	// ErrReadFailed is returned when a driver could not produce a value.
	// Callers cache the state as unknown (nil) and carry on.
	ErrReadFailed = errors.New("resource: read failed")

	// ErrWriteFailed is returned when a local or remote write was rejected.
	ErrWriteFailed = errors.New("resource: write failed")

	// ErrReadOnly is returned when setting the state of a resource that
	// cannot be written.
	ErrReadOnly = errors.New("resource: read-only")

	// ErrUnavailable is returned when the resource (or the remote service
	// behind it) is disabled. Writes fail fast without attempting I/O.
	ErrUnavailable = errors.New("resource: unavailable")
)
