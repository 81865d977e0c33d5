package tcp

import (
	"context"
	"net"

	"github.com/fluxorio/exchanger/pkg/core"
)

// Server represents a TCP server abstraction.
type Server interface {
	// Start starts the server (blocking).
	Start() error

	// Stop stops accepting, then drains accepted connections.
	Stop() error

	// SetHandler sets the connection handler (fail-fast on nil).
	SetHandler(handler ConnectionHandler)

	// Metrics returns current server metrics.
	Metrics() ServerMetrics
}

// ConnectionHandler handles a single TCP connection.
// Implementations should be fail-fast and must not block forever.
// The server closes the connection after handler returns.
type ConnectionHandler func(ctx *ConnContext) error

// Middleware wraps a ConnectionHandler
type Middleware func(next ConnectionHandler) ConnectionHandler

// ConnContext provides per-connection context.
type ConnContext struct {
	Context   context.Context
	Conn      net.Conn
	RequestID string
	Logger    core.Logger

	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// ServerMetrics provides TCP server performance metrics.
type ServerMetrics struct {
	Workers            int   // Worker pool size
	BusyWorkers        int   // Workers currently serving a connection
	QueuedConnections  int   // Accepted connections waiting for a worker
	TotalAccepted      int64 // Total connections accepted
	HandledConnections int64 // Total connections handed to the handler
	ErrorConnections   int64 // Total connections whose handler failed or panicked
	ActiveConnections  int64 // Accepted and not yet closed
}
