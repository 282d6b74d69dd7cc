// Package http serves the verification API over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/claims"
	"github.com/fyrsmithlabs/quotecheck/internal/embedstore"
	"github.com/fyrsmithlabs/quotecheck/internal/logging"
	"github.com/fyrsmithlabs/quotecheck/internal/verification"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
	maxBodyBytes       = "1M"
)

// Searcher runs semantic search over indexed snippets. *indexer.Indexer implements it.
type Searcher interface {
	SearchText(ctx context.Context, text string, limit int) (*embedstore.SearchResponse, error)
}

// Server provides HTTP endpoints for quotecheck.
type Server struct {
	echo     *echo.Echo
	verifier verification.Service
	searcher Searcher
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a new HTTP server. searcher may be nil, in which case
// /api/v1/search answers 503.
func NewServer(verifier verification.Service, searcher Searcher, logger *logging.Logger, cfg *Config) (*Server, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verification service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 9191}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodyBytes))
	e.Use(requestLogger(logger))
	e.Use(NewHTTPMetrics(logger.Underlying()).MetricsMiddleware())

	s := &Server{
		echo:     e,
		verifier: verifier,
		searcher: searcher,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/verify", s.handleVerify)
	v1.POST("/find", s.handleFind)
	v1.POST("/claims/verify", s.handleVerifyAll)
	v1.POST("/claims/:id/verify", s.handleVerifyClaim)
	v1.POST("/confidence", s.handleConfidence)
	v1.POST("/search", s.handleSearch)
}

// requestLogger attaches the request id to the request context and logs each request.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = errorStatus(err)
			}
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn(ctx, "http request", append(fields, zap.Error(err))...)
			} else {
				logger.Info(ctx, "http request", fields...)
			}
			return err
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) handleVerify(c echo.Context) error {
	var req verification.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.verifier.VerifyQuote(c.Request().Context(), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleFind(c echo.Context) error {
	var req FindRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.verifier.FindQuote(c.Request().Context(), req.Quote)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleVerifyClaim(c echo.Context) error {
	id := c.Param("id")
	if err := claims.ValidateID(id); err != nil {
		return toHTTPError(err)
	}
	res, err := s.verifier.VerifyClaim(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleVerifyAll(c echo.Context) error {
	report, err := s.verifier.VerifyAllClaims(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleConfidence(c echo.Context) error {
	var req ConfidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	score, err := s.verifier.ScoreConfidence(c.Request().Context(), req.Claim, req.Quote)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ConfidenceResponse{Score: score})
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.searcher == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "semantic search is not configured")
	}
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	resp, err := s.searcher.SearchText(c.Request().Context(), req.Query, limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: resp.Results, Skipped: resp.Skipped})
}

// toHTTPError maps service errors onto status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, verification.ErrEmptyQuote),
		errors.Is(err, claims.ErrInvalidClaimID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, claims.ErrClaimNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, verification.ErrNoClaims),
		errors.Is(err, verification.ErrNoScorer),
		errors.Is(err, verification.ErrServiceClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request cancelled")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

func errorStatus(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := errorStatus(err)
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Error: msg})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
