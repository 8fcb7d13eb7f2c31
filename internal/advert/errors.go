package advert

import "errors"

var (
	// ErrTransport is returned when an advertisement could not be sent. The
	// transport has already discarded its socket and reopens it on the next
	// send.
	ErrTransport = errors.New("advert: transport failure")

	// ErrMalformed is returned when a datagram is not a valid advertisement.
	ErrMalformed = errors.New("advert: malformed message")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("advert: transport closed")
)
