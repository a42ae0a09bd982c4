// Package transport defines the byte-stream interface the Modbus client
// reads and writes through. The codec predicts the exact size of every
// response, so a transport only needs connect/close, a write, and a single
// bounded read; framing and reassembly never happen here.
package transport

import (
	"context"
	"time"
)

// ConnectionState represents the current state of a transport connection.
type ConnectionState int

const (
	// StateDisconnected indicates the transport is not connected.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting
	// StateConnected indicates the transport is connected and ready.
	StateConnected
	// StateError indicates the transport is in an error state.
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Transport is a connected byte stream carrying one request/response
// exchange at a time. Implementations must be safe for concurrent use; the
// caller owns the connect/close lifecycle.
type Transport interface {
	// Connect establishes a connection to the remote endpoint. It blocks
	// until connected, the configured connect timeout elapses, or the
	// context is cancelled.
	Connect(ctx context.Context) error

	// Close closes the connection and releases all resources.
	Close() error

	// IsConnected returns true if the transport is currently connected.
	IsConnected() bool

	// Send transmits data over the transport. It returns the number of
	// bytes sent and any error encountered.
	Send(ctx context.Context, data []byte) (int, error)

	// Receive performs one blocking read into a buffer of exactly max
	// bytes and returns what arrived. A read deadline violation surfaces
	// as an error; the transport never retries.
	Receive(ctx context.Context, max int) ([]byte, error)

	// Info returns information about the transport.
	Info() Info
}

// Config holds the configuration for a transport.
type Config struct {
	// Address is the remote endpoint in "host:port" form.
	Address string `yaml:"address" json:"address" validate:"omitempty,hostname_port"`

	// ConnectTimeout bounds the connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`

	// ReadTimeout bounds each Receive call.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout bounds each Send call.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// KeepAlive enables TCP keepalive.
	KeepAlive bool `yaml:"keepalive" json:"keepalive"`

	// KeepAlivePeriod is the keepalive interval.
	KeepAlivePeriod time.Duration `yaml:"keepalive_period" json:"keepalive_period"`

	// NoDelay disables Nagle's algorithm.
	NoDelay bool `yaml:"no_delay" json:"no_delay"`
}

// DefaultConfig returns a default transport configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		KeepAlive:       true,
		KeepAlivePeriod: 30 * time.Second,
		NoDelay:         true,
	}
}

// Statistics contains transport performance statistics.
type Statistics struct {
	// BytesSent is the total number of bytes sent.
	BytesSent uint64 `json:"bytes_sent"`

	// BytesReceived is the total number of bytes received.
	BytesReceived uint64 `json:"bytes_received"`

	// Errors is the total number of errors encountered.
	Errors uint64 `json:"errors"`
}

// Info contains runtime information about a transport.
type Info struct {
	// ID is a unique identifier for this transport instance.
	ID string `json:"id"`

	// Type is the transport type.
	Type string `json:"type"`

	// Address is the configured address.
	Address string `json:"address"`

	// State is the current connection state.
	State ConnectionState `json:"state"`

	// Statistics contains transport statistics.
	Statistics Statistics `json:"statistics"`

	// ConnectedAt is when the connection was established.
	ConnectedAt *time.Time `json:"connected_at,omitempty"`

	// LastError is the last error that occurred.
	LastError string `json:"last_error,omitempty"`
}
