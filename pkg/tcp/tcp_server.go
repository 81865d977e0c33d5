package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/exchanger/pkg/core"
	"github.com/fluxorio/exchanger/pkg/core/concurrency"
	"github.com/fluxorio/exchanger/pkg/core/failfast"
)

// ErrAlreadyStarted is returned by Start when the server is already listening
var ErrAlreadyStarted = errors.New("tcp server already started")

// TCPServer accepts connections and submits one job per connection to a
// WorkerPool. The pool's queue is unbounded: every accepted connection is
// eventually served, there is no rejection path.
type TCPServer struct {
	addr   string
	config *TCPServerConfig
	pool   concurrency.WorkerPool
	logger core.Logger

	mu       sync.RWMutex
	listener net.Listener
	stopping int32
	stopOnce sync.Once

	handler     ConnectionHandler
	middlewares []Middleware
	effective   ConnectionHandler

	// Metrics (atomic for thread-safety)
	totalAccepted      int64
	handledConnections int64
	errorConnections   int64
	activeConns        int64
}

// TCPServerConfig configures the TCP server.
type TCPServerConfig struct {
	Addr string

	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// Connection settings.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger defaults to core.NewDefaultLogger().
	Logger core.Logger
}

// DefaultTCPServerConfig returns a sensible default configuration.
func DefaultTCPServerConfig(addr string) *TCPServerConfig {
	if addr == "" {
		addr = "127.0.0.1:7878"
	}
	return &TCPServerConfig{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// NewTCPServer creates a TCP server feeding pool. The server owns the pool
// from here on: Stop shuts it down.
func NewTCPServer(config *TCPServerConfig, pool concurrency.WorkerPool) *TCPServer {
	failfast.NotNil(pool, "pool")
	if config == nil {
		config = DefaultTCPServerConfig("")
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:7878"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	s := &TCPServer{
		addr:    config.Addr,
		config:  config,
		pool:    pool,
		logger:  logger.WithFields(map[string]interface{}{"component": "tcp-server"}),
		handler: defaultConnectionHandler,
	}
	s.effective = s.handler
	return s
}

func defaultConnectionHandler(ctx *ConnContext) error {
	// Default: do nothing. Connection will be closed by server.
	return nil
}

// SetHandler sets the connection handler (fail-fast on nil).
func (s *TCPServer) SetHandler(handler ConnectionHandler) {
	if handler == nil {
		panic("tcp handler cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	s.rebuildHandlerLocked()
}

// Use adds middleware to the TCP server. Call before Start().
// Fail-fast: panics if any middleware is nil.
func (s *TCPServer) Use(mw ...Middleware) {
	if len(mw) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mw {
		if m == nil {
			panic("tcp middleware cannot be nil")
		}
		s.middlewares = append(s.middlewares, m)
	}
	s.rebuildHandlerLocked()
}

func (s *TCPServer) rebuildHandlerLocked() {
	h := s.handler
	// First added runs outermost.
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		h = s.middlewares[i](h)
	}
	s.effective = h
}

// ListeningAddr returns the actual listening address (useful when Addr is ":0").
// Returns empty string if not currently listening.
func (s *TCPServer) ListeningAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens and runs the accept loop. It blocks until Stop is called or
// the listener fails.
func (s *TCPServer) Start() error {
	var (
		ln  net.Listener
		err error
	)
	if s.config.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.addr, s.config.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if atomic.LoadInt32(&s.stopping) == 1 {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	if s.listener != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyStarted
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Infof("listening on %s with %d workers", ln.Addr(), s.pool.Workers())

	for {
		conn, err := ln.Accept()
		if err != nil {
			// If we're stopping, treat "closed listener" as clean shutdown.
			if atomic.LoadInt32(&s.stopping) == 1 {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		atomic.AddInt64(&s.totalAccepted, 1)
		if !s.dispatch(conn) {
			return nil
		}
	}
}

// dispatch submits conn to the pool. It returns false when the server is
// stopping, in which case conn is closed instead.
func (s *TCPServer) dispatch(conn net.Conn) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if atomic.LoadInt32(&s.stopping) == 1 {
		_ = conn.Close()
		return false
	}

	atomic.AddInt64(&s.activeConns, 1)
	s.pool.Submit(concurrency.NewNamedJob(
		fmt.Sprintf("conn %s", conn.RemoteAddr()),
		func() { s.serveConn(conn) },
	))
	return true
}

// Stop closes the listener, then shuts the pool down. Connections accepted
// before Stop are still served. Safe to call more than once.
func (s *TCPServer) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		atomic.StoreInt32(&s.stopping, 1)
		ln := s.listener
		s.listener = nil
		s.mu.Unlock()

		// Close listener to break Accept().
		if ln != nil {
			_ = ln.Close()
		}

		s.pool.Shutdown()
		s.logger.Infof("stopped after %d connections", atomic.LoadInt64(&s.totalAccepted))
	})
	return nil
}

// Metrics returns current server metrics.
func (s *TCPServer) Metrics() ServerMetrics {
	stats := s.pool.Stats()
	return ServerMetrics{
		Workers:            stats.Workers,
		BusyWorkers:        stats.BusyWorkers,
		QueuedConnections:  stats.QueuedJobs,
		TotalAccepted:      atomic.LoadInt64(&s.totalAccepted),
		HandledConnections: atomic.LoadInt64(&s.handledConnections),
		ErrorConnections:   atomic.LoadInt64(&s.errorConnections),
		ActiveConnections:  atomic.LoadInt64(&s.activeConns),
	}
}

// serveConn is the job body for one connection.
func (s *TCPServer) serveConn(conn net.Conn) {
	defer atomic.AddInt64(&s.activeConns, -1)
	defer conn.Close()

	s.mu.RLock()
	h := s.effective
	s.mu.RUnlock()

	// Per-connection timeouts (best-effort).
	_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))

	ctx, requestID := core.EnsureRequestID(context.Background())
	cctx := &ConnContext{
		Context:   ctx,
		Conn:      conn,
		RequestID: requestID,
		Logger: core.LoggerFor(ctx, s.logger).WithFields(map[string]interface{}{
			"remote": conn.RemoteAddr().String(),
		}),
		LocalAddr:  conn.LocalAddr(),
		RemoteAddr: conn.RemoteAddr(),
	}

	// Panic isolation is per-connection so the worker keeps its own
	// accounting of clean job completions.
	atomic.AddInt64(&s.handledConnections, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.errorConnections, 1)
			cctx.Logger.Errorf("panic in tcp handler (isolated): %v", r)
		}
	}()
	if err := h(cctx); err != nil {
		atomic.AddInt64(&s.errorConnections, 1)
		cctx.Logger.Errorf("tcp handler error: %v", err)
	}
}
