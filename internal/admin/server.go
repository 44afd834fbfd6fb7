package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harun/pdfbot/internal/config"
	"github.com/harun/pdfbot/pkg/dispatcher"
	"github.com/harun/pdfbot/pkg/scratch"
)

// SessionSource lists the conversations held in memory
type SessionSource interface {
	Sessions() []dispatcher.SessionView
}

// UsageSource reports scratch disk usage
type UsageSource interface {
	DiskUsage() (scratch.Usage, error)
}

// Health is the body of GET /healthz
type Health struct {
	Status    string        `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Uptime    string        `json:"uptime"`
	Sessions  int           `json:"sessions"`
	Scratch   scratch.Usage `json:"scratch"`
}

// Server exposes health, metrics and session state over HTTP
type Server struct {
	addr      string
	sessions  SessionSource
	usage     UsageSource
	metrics   http.Handler
	logger    zerolog.Logger
	startTime time.Time
	router    *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates an admin server. metrics may be nil, in which case /metrics
// is not registered.
func New(cfg config.AdminConfig, sessions SessionSource, usage UsageSource, metrics http.Handler, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:      net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		sessions:  sessions,
		usage:     usage,
		metrics:   metrics,
		logger:    logger.With().Str("component", "admin").Logger(),
		startTime: time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(router)
	s.router = router

	return s
}

// RegisterRoutes wires the admin endpoints into router
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", s.health)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := router.Group("/v1")
	v1.GET("/sessions", s.listSessions)
}

// Handler returns the HTTP handler serving the admin endpoints
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("admin server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting admin server")

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Admin server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down admin server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	usage, err := s.usage.DiskUsage()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to measure scratch usage")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "scratch directory unavailable"})
		return
	}

	c.JSON(http.StatusOK, Health{
		Status:    "ok",
		StartedAt: s.startTime,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Sessions:  len(s.sessions.Sessions()),
		Scratch:   usage,
	})
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.sessions.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// requestLogger logs each request at debug level
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Admin request")
	}
}
