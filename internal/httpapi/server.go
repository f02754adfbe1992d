// Package httpapi exposes the legald pipeline over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/rag"
)

// HeaderServiceKey carries the shared-secret credential for API routes.
const HeaderServiceKey = "X-Service-Key"

// Answerer is the pipeline surface the transport needs.
type Answerer interface {
	Answer(ctx context.Context, q rag.Query) rag.Result
	AnswerStream(ctx context.Context, q rag.Query) <-chan rag.StreamEvent
}

// Config holds HTTP server configuration.
type Config struct {
	Host       string
	Port       int
	ServiceKey string
}

// Server provides HTTP endpoints for legald.
type Server struct {
	echo    *echo.Echo
	service Answerer
	logger  *zap.Logger
	config  Config
}

// NewServer creates a new HTTP server.
func NewServer(service Answerer, logger *zap.Logger, cfg Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("answering service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("service key cannot be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Unauthenticated probes and scrape target
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes, behind the shared service key
	v1 := s.echo.Group("/api/v1")
	v1.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + HeaderServiceKey,
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.ServiceKey)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing service key")
		},
	}))
	v1.POST("/chat", s.handleChat)
	v1.POST("/chat/stream", s.handleChatStream)
	v1.GET("/templates", s.handleTemplates)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
