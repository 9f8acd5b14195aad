// Package mockserver serves the device API from a simulated board on a regular
// Go HTTP stack, for client development without hardware.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/wally/pkg/api"
	"github.com/itohio/wally/pkg/daq"
	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/hal/sim"
	"github.com/itohio/wally/pkg/metrics"
	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

const (
	DefaultAddr         = ":8080"
	DefaultTickInterval = 50 * time.Millisecond
	shutdownTimeout     = 5 * time.Second
)

// Config configures the mock device.
type Config struct {
	Addr         string
	IPAddress    string
	TickInterval time.Duration
}

// Server is a mock device. Handlers run concurrently and are serialized on a
// single mutex around the acquisition core.
type Server struct {
	cfg     Config
	mu      sync.Mutex
	agg     *daq.Aggregator
	svc     *api.Service
	metrics *metrics.Metrics
	engine  *gin.Engine
}

// Simulated builds an aggregator over a live simulated board that follows
// slow waveforms for every descriptor.
func Simulated(cfg daq.Config, descs sensor.Descriptors, live sim.LiveConfig, threshold float64) *daq.Aggregator {
	clock := hal.NewSystemClock()
	board := sim.NewLive(descs, live, clock)
	return daq.New(cfg, board, clock, descs, vernier.New(threshold))
}

// New wraps agg. m may be nil.
func New(cfg Config, agg *daq.Aggregator, m *metrics.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.IPAddress == "" {
		cfg.IPAddress = "127.0.0.1"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	s := &Server{
		cfg:     cfg,
		agg:     agg,
		svc:     api.New(agg, cfg.IPAddress),
		metrics: m,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler of the mock device.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) BootID() string { return s.svc.BootID() }

// Tick advances continuous acquisition once.
func (s *Server) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Tick()
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.engine}
	log.WithField("addr", ln.Addr().String()).Info("mock device listening")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.WithError(err).Warn("mock device shutdown")
				}
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()

	err := srv.Serve(ln)
	<-done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) setupRoutes() {
	r := gin.New()
	r.HandleMethodNotAllowed = false
	r.Use(gin.Recovery())
	r.Use(s.observe())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(getOnly())

	sensors := s.locked(func(c *gin.Context) { c.JSON(http.StatusOK, s.svc.Sensors()) })
	r.GET("/", sensors)
	r.GET("/sensors", sensors)
	r.GET("/status", s.locked(func(c *gin.Context) { c.JSON(http.StatusOK, s.svc.Status()) }))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	vernierGroup := r.Group("/vernier")
	{
		vernierGroup.GET("/status", s.locked(func(c *gin.Context) { c.JSON(http.StatusOK, s.svc.VernierStatus()) }))
		vernierGroup.GET("/active", s.locked(func(c *gin.Context) { c.JSON(http.StatusOK, s.svc.Active()) }))
		vernierGroup.GET("/command/*cmd", s.locked(func(c *gin.Context) {
			c.JSON(http.StatusOK, s.svc.Command(c.Request.URL.Path))
		}))
	}

	var registry *prometheus.Registry
	if registry = s.metrics.Registry(); registry == nil {
		registry = prometheus.NewRegistry()
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})

	s.engine = r
}

func (s *Server) locked(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		h(c)
	}
}

// getOnly rejects everything except GET and CORS preflight, including
// requests for unknown paths.
func getOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		switch {
		case c.Writer.Status() == http.StatusMethodNotAllowed:
			route = "method_not_allowed"
		case route == "":
			route = "not_found"
		}
		s.metrics.ObserveRequest(route, c.Writer.Status())

		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}
