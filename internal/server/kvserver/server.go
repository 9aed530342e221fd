package kvserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/condkv/internal/core/domain"
	"github.com/yndnr/condkv/internal/core/service"
	"github.com/yndnr/condkv/internal/storage/memory"
	"github.com/yndnr/condkv/internal/telemetry/logger"
	"github.com/yndnr/condkv/internal/telemetry/metric"
	"github.com/yndnr/condkv/pkg/cmap"
	"github.com/yndnr/condkv/pkg/wire"
)

// Config holds the protocol server configuration.
type Config struct {
	// Addr is the TCP listen address. Empty disables TCP.
	Addr string
	// LocalPath is the Unix socket path for local clients. Empty disables it.
	LocalPath string
	// IdleTimeout closes a connection that sends nothing for this long
	// between requests. Zero means no limit.
	IdleTimeout time.Duration
	// WriteTimeout bounds writing one response (default: 30s).
	WriteTimeout time.Duration
	// RateLimit is the maximum number of requests per second per
	// connection. Zero disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:8080",
		IdleTimeout:  0,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the condkv protocol server.
type Server struct {
	cfg      *Config
	handler  *Dispatcher
	registry *service.SessionRegistry
	limiter  *service.RateLimiterRegistry
	metrics  *metric.Registry
	logger   *slog.Logger

	conns *cmap.Map[domain.ConnID, *Conn]

	mu        sync.Mutex
	listeners []net.Listener

	// baseCtx is cancelled by Shutdown to release blocked operations.
	baseCtx context.Context
	cancel  context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a protocol server over store and registry. metrics may be nil.
func New(cfg *Config, store *memory.Store, registry *service.SessionRegistry, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := service.NewRateLimiterRegistry(cfg.RateLimit)
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		registry: registry,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger,
		conns:    cmap.New[domain.ConnID, *Conn](),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
	s.handler = NewDispatcher(store, registry, limiter, logger)
	return s
}

// Start opens the configured listeners and accepts connections in the
// background. It returns once every listener is open.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Addr == "" && s.cfg.LocalPath == "" {
		s.logger.Info("protocol server disabled (no listen address)")
		return nil
	}

	if s.cfg.Addr != "" {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", s.cfg.Addr, err)
		}
		s.addListener(ln)
		s.logger.Info("protocol server listening", "network", "tcp", "address", ln.Addr().String())
	}

	if s.cfg.LocalPath != "" {
		ln, err := listenUnix(s.cfg.LocalPath)
		if err != nil {
			s.closeListeners()
			return err
		}
		s.addListener(ln)
		s.logger.Info("protocol server listening", "network", "unix", "address", s.cfg.LocalPath)
	}

	s.running.Store(true)

	s.mu.Lock()
	lns := append([]net.Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, ln := range lns {
		s.wg.Add(1)
		go func(ln net.Listener) {
			defer s.wg.Done()
			if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
				s.logger.Error("accept loop failed", "address", ln.Addr().String(), "error", err)
			}
		}(ln)
	}
	return nil
}

// listenUnix listens on path, replacing a stale socket file.
func listenUnix(path string) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("listen unix %s: file exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod socket %s: %w", path, err)
	}
	return ln, nil
}

func (s *Server) addListener(ln net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
}

func (s *Server) closeListeners() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	s.listeners = nil
	return firstErr
}

// Addr returns the address of the first listener, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// Shutdown stops accepting, interrupts blocked operations, closes every
// open connection and waits for their goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	firstErr := s.closeListeners()
	s.cancel()
	s.conns.Range(func(_ domain.ConnID, c *Conn) bool {
		_ = c.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.cfg.LocalPath != "" {
		_ = os.Remove(s.cfg.LocalPath)
	}
	return firstErr
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.running.Load()
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	return s.conns.Count()
}

// Conns returns a snapshot of the open connections.
func (s *Server) Conns() []*Conn {
	return s.conns.Values()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.HandleConnection(ctx, c)
		}()
	}
}

// HandleConnection serves nc until the client disconnects, a frame fails
// to decode, ctx is cancelled or the server shuts down. Any session bound
// to the connection is ended and nc is closed before it returns. The
// returned error is nil for a clean disconnect.
func (s *Server) HandleConnection(ctx context.Context, nc net.Conn) error {
	s.wg.Add(1)
	defer s.wg.Done()

	id, err := domain.NewConnID()
	if err != nil {
		_ = nc.Close()
		return err
	}

	ctx = logger.WithLogger(ctx, logger.Wrap(s.logger))
	ctx, cancel := context.WithCancel(logger.WithConnID(ctx, id.String()))
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	c := newConn(id, nc)
	s.conns.Set(id, c)
	s.metrics.ConnOpened()
	s.logger.Debug("connection opened", "conn_id", id, "remote", c.RemoteAddr())

	// Close the transport as soon as ctx ends so a pending read returns.
	closeOnCancel := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer closeOnCancel()

	serveErr := s.serveConn(ctx, c)

	_ = c.Close()
	if user, ok := s.registry.EndSession(id); ok {
		s.logger.Info("session ended by disconnect", "conn_id", id, "remote", c.RemoteAddr(), "user", user)
	}
	s.limiter.Delete(id)
	s.conns.Delete(id)
	s.metrics.ConnClosed(isProtocolError(serveErr))
	s.logger.Debug("connection closed", "conn_id", id, "remote", c.RemoteAddr(), "error", serveErr)
	return serveErr
}

func (s *Server) serveConn(ctx context.Context, c *Conn) error {
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}

	for {
		var deadline time.Time
		if s.cfg.IdleTimeout > 0 {
			deadline = time.Now().Add(s.cfg.IdleTimeout)
		}
		if err := c.netConn.SetReadDeadline(deadline); err != nil {
			return nil
		}

		req, err := c.dec.Decode()
		if err != nil {
			return s.classifyReadError(ctx, c, err)
		}
		if err := c.netConn.SetReadDeadline(time.Time{}); err != nil {
			return nil
		}

		start := time.Now()
		resp := s.handler.Handle(ctx, c, req)
		s.metrics.ObserveRequest(req.Kind.String(), resp.Success, time.Since(start))

		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return nil
		}
		if err := s.writeResponse(c, req, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// writeResponse sends resp. A response the codec rejects is replaced by an
// internal-error RESPONSE, so the request is still answered and the
// connection stays open. The codec rejects a frame before writing any of it.
func (s *Server) writeResponse(c *Conn, req, resp *wire.Message) error {
	err := c.enc.Encode(resp)
	if err == nil || !(errors.Is(err, wire.ErrLimitExceeded) || errors.Is(err, wire.ErrProtocol)) {
		return err
	}
	s.logger.Error("response not encodable", "conn_id", c.id, "remote", c.RemoteAddr(), "action", req.Kind.String(), "error", err)
	return c.enc.Encode(failure(req, StatusInternalError, domain.ErrInternalServer.WithDetails("response not encodable")))
}

func (s *Server) classifyReadError(ctx context.Context, c *Conn, err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), c.closed.Load():
		return nil
	case errors.Is(err, wire.ErrProtocol), errors.Is(err, wire.ErrLimitExceeded):
		logger.L(ctx).Warn("malformed frame, closing connection", "remote", c.RemoteAddr(), "error", err)
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.L(ctx).Debug("connection idle timeout", "remote", c.RemoteAddr())
		return nil
	}
	return fmt.Errorf("read request: %w", err)
}

func isProtocolError(err error) bool {
	return errors.Is(err, wire.ErrProtocol) || errors.Is(err, wire.ErrLimitExceeded)
}

// Conn is one client connection.
type Conn struct {
	id          domain.ConnID
	netConn     net.Conn
	br          *bufio.Reader
	bw          *bufio.Writer
	dec         *wire.Decoder
	enc         *wire.Encoder
	connectedAt time.Time

	closed atomic.Bool
}

func newConn(id domain.ConnID, c net.Conn) *Conn {
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	return &Conn{
		id:          id,
		netConn:     c,
		br:          br,
		bw:          bw,
		dec:         wire.NewDecoder(br),
		enc:         wire.NewEncoder(bw),
		connectedAt: time.Now(),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() domain.ConnID {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	if a := c.netConn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// ConnectedAt returns when the connection was accepted.
func (c *Conn) ConnectedAt() time.Time {
	return c.connectedAt
}

// Close closes the transport. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}
