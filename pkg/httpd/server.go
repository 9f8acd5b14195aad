package httpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultAcceptTimeout       = time.Second
	DefaultReadTimeout         = 2 * time.Second
	DefaultWriteTimeout        = 2 * time.Second
	DefaultBufferSize          = 1024
	DefaultMaintenanceInterval = 30 * time.Second
)

// Config tunes the serve loop.
type Config struct {
	Addr                string
	AcceptTimeout       time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	BufferSize          int
	MaintenanceInterval time.Duration
}

func (c *Config) ensureDefaults() {
	if c.AcceptTimeout <= 0 {
		c.AcceptTimeout = DefaultAcceptTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = DefaultMaintenanceInterval
	}
}

// RequestObserver is notified after every response is written.
type RequestObserver interface {
	ObserveRequest(route string, status int)
}

// Option customises a Server.
type Option func(*Server)

// WithTick runs f on every loop iteration, on the server goroutine.
func WithTick(f func()) Option {
	return func(s *Server) { s.ticks = append(s.ticks, f) }
}

// WithMaintenance replaces the periodic maintenance task (runtime.GC).
func WithMaintenance(f func()) Option {
	return func(s *Server) { s.maintenance = f }
}

// WithObserver reports every served request to o.
func WithObserver(o RequestObserver) Option {
	return func(s *Server) { s.observer = o }
}

// Server serves one connection at a time from a single goroutine. Handlers,
// tick hooks and maintenance all run on that goroutine, so state they share
// needs no locking.
type Server struct {
	cfg    Config
	router *Router

	ticks       []func()
	maintenance func()
	observer    RequestObserver

	buf       []byte
	running   atomic.Bool
	lastMaint time.Time
}

func New(cfg Config, router *Router, opts ...Option) *Server {
	cfg.ensureDefaults()

	s := &Server{
		cfg:         cfg,
		router:      router,
		maintenance: runtime.GC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = make([]byte, cfg.BufferSize)
	return s
}

// ListenAndServe binds cfg.Addr and serves until ctx is done or Stop is
// called. A bind failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	log.WithField("addr", ln.Addr().String()).Info("http server listening")
	return s.Serve(ctx, ln)
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Serve runs the accept loop on ln and closes it on return. The stop flag and
// ctx are checked once per iteration, i.e. at least once per accept timeout
// when ln supports deadlines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	s.running.Store(true)
	s.lastMaint = time.Now()

	for s.running.Load() {
		if ctx.Err() != nil {
			break
		}
		s.tick()

		if dl, ok := ln.(deadliner); ok {
			_ = dl.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout))
		}

		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				continue
			case errors.Is(err, net.ErrClosed):
				return nil
			}
			log.WithError(err).Warn("accept failed")
			continue
		}

		s.serveConn(conn)
	}

	log.Info("http server stopped")
	return nil
}

// Stop asks the loop to exit at its next iteration.
func (s *Server) Stop() {
	s.running.Store(false)
}

// Running reports whether the loop is active.
func (s *Server) Running() bool {
	return s.running.Load()
}

func (s *Server) tick() {
	for _, f := range s.ticks {
		runHook("tick", f)
	}

	if time.Since(s.lastMaint) >= s.cfg.MaintenanceInterval {
		s.lastMaint = time.Now()
		runHook("maintenance", s.maintenance)
	}
}

// runHook calls f and logs a panic instead of ending the loop.
func runHook(name string, f func()) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("hook", name).Errorf("hook panic: %v", p)
		}
	}()
	f()
}

// serveConn reads at most one buffer, answers once and closes the connection.
// Bytes beyond the buffer are ignored.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	logger := log.WithField("remote", conn.RemoteAddr().String())

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	n, err := conn.Read(s.buf)
	if n == 0 && err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			logger.Debug("read timeout")
			return
		}
	}

	resp, route := Error(400, ""), "bad_request"
	if req, err := ParseRequestLine(s.buf[:n]); err == nil {
		resp, route = s.router.Serve(req)
		logger = logger.WithFields(log.Fields{"method": req.Method, "path": req.Path})
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := resp.WriteTo(conn); err != nil {
		logger.WithError(err).Warn("write response")
	}

	if s.observer != nil {
		s.observer.ObserveRequest(route, resp.Status)
	}
	logger.WithField("status", resp.Status).Debug("served")
}
