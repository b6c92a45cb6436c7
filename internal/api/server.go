package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/redditbot/internal/monitor"
)

// BucketReporter exposes the token bucket's state for the status endpoint.
type BucketReporter interface {
	Tokens() int
	Capacity() int
	SecondsToNextRefill() int
}

// AuthReporter reports whether the provider holds a valid token.
type AuthReporter interface {
	IsAuthenticated() bool
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Board         string                `json:"board"`
	Authenticated bool                  `json:"authenticated"`
	Uptime        string                `json:"uptime"`
	RateLimit     RateLimitStatus       `json:"rate_limit"`
	Stats         monitor.StatsSnapshot `json:"stats"`
}

// RateLimitStatus describes the bucket at request time.
type RateLimitStatus struct {
	Tokens              int `json:"tokens"`
	Capacity            int `json:"capacity"`
	SecondsToNextRefill int `json:"seconds_to_next_refill"`
}

// Server is a small read-only status server next to the polling loop.
type Server struct {
	echo    *echo.Echo
	addr    string
	board   string
	stats   *monitor.Stats
	bucket  BucketReporter
	auth    AuthReporter
	logger  zerolog.Logger
	started time.Time
}

// NewServer creates the status server. auth may be nil.
func NewServer(addr, board string, stats *monitor.Stats, bucket BucketReporter, auth AuthReporter, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())

	server := &Server{
		echo:    e,
		addr:    addr,
		board:   board,
		stats:   stats,
		bucket:  bucket,
		auth:    auth,
		logger:  logger,
		started: time.Now(),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.getStatus)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves in the background; use Shutdown to stop.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("Status server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Status server stopped")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Board:  s.board,
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Stats:  s.stats.Snapshot(),
	}
	if s.auth != nil {
		resp.Authenticated = s.auth.IsAuthenticated()
	}
	if s.bucket != nil {
		resp.RateLimit = RateLimitStatus{
			Tokens:              s.bucket.Tokens(),
			Capacity:            s.bucket.Capacity(),
			SecondsToNextRefill: s.bucket.SecondsToNextRefill(),
		}
	}
	return c.JSON(http.StatusOK, resp)
}
