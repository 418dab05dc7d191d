// Package httpapi serves the session operations over HTTP with echo.
//
// Every route answers 200 with a flat JSON object. Failures are reported in
// the body as {"success": false, "error": ...} so thin callers only need to
// look at one field.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const DefaultListenAddress = "0.0.0.0:9876"

type Config struct {
	ListenAddress string
	// MaxChallengeTimeout caps the timeout a request body may ask for.
	MaxChallengeTimeout time.Duration
}

// Deps are the services behind the routes. Probe and Gatherer are optional.
type Deps struct {
	Service    *application.Service
	Challenges *application.ChallengeService
	Validator  *application.Validator
	Probe      *application.PageProbe
	Gatherer   prometheus.Gatherer
}

type Server struct {
	Echo   *echo.Echo
	Routes []*echo.Route

	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.MaxChallengeTimeout <= 0 {
		cfg.MaxChallengeTimeout = application.DefaultChallengeTimeout
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{Echo: e, cfg: cfg, deps: deps, logger: logger}
	e.HTTPErrorHandler = s.handleError
	e.Pre(allowAnyOrigin)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil {
				event = s.logger.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.Routes = []*echo.Route{
		getHealthRoute(s),
		getMetricsRoute(s),
		getProbeAllRoute(s),
		getProbeRoute(s),
		postRootActionRoute(s),
		postSegmentActionRoute(s),
		postPlatformActionRoute(s),
		getSegmentActionRoute(s),
		getPlatformActionRoute(s),
	}

	return s
}

func (s *Server) Address() string {
	return s.cfg.ListenAddress
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info().Str("listen", s.cfg.ListenAddress).Msg("http server listening")
	if err := s.Echo.Start(s.cfg.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start http server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// allowAnyOrigin sets wildcard CORS headers on every response and answers
// preflight requests before routing.
func allowAnyOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Response().Header()
		header.Set(echo.HeaderAccessControlAllowOrigin, "*")

		if c.Request().Method == http.MethodOptions {
			header.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
			header.Set(echo.HeaderAccessControlAllowHeaders, echo.HeaderContentType)
			return c.NoContent(http.StatusOK)
		}

		return next(c)
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			_ = c.JSON(http.StatusOK, errorBody{Error: MessageUnknownEndpoint})
			return
		}
	}

	s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("request failed")
	_ = c.JSON(http.StatusOK, failure(err))
}
