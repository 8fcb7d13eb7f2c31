package store

import "errors"

var (
	// ErrNameRequired is returned when a resource name is empty.
	ErrNameRequired = errors.New("store: resource name is required")

	// ErrInvalidAge is returned by Prune for a non-positive retention.
	ErrInvalidAge = errors.New("store: retention must be positive")

	// ErrEncode is returned when a value cannot be stored as JSON.
	ErrEncode = errors.New("store: value is not JSON encodable")
)
