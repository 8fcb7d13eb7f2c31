package state

import "errors"

// ErrAlreadyStarted is returned when Start is called on a running cache.
var ErrAlreadyStarted = errors.New("state: cache already started")
