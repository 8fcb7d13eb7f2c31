package advert

import "context"

// Transport delivers encoded advertisements.
type Transport interface {
	// Name identifies the transport in logs and metrics.
	Name() string

	// Send delivers one encoded message. Failures wrap ErrTransport.
	Send(ctx context.Context, data []byte) error

	// Close releases the transport.
	Close() error
}

// Logger defines the logging interface for transports and listeners.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
