// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the ingestion and chat entry points over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/ingestion"
	"github.com/poiesic/profmatch/retrieval"
)

// Ingester runs one submission with caller-level retries.
type Ingester interface {
	Ingest(ctx context.Context, url string, attempts int, delay time.Duration) (*ingestion.Outcome, error)
}

// Answerer runs one chat turn.
type Answerer interface {
	Answer(ctx context.Context, history []core.ConversationMessage) (*retrieval.Turn, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Ingester Ingester
	Answerer Answerer
	Metrics  http.Handler // optional; /metrics is not mounted when nil
	Logger   *slog.Logger
}

// Config configures the listener and ingestion retries.
type Config struct {
	Addr              string
	IngestRetries     int
	RetryDelay        time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server serves POST /api/scrape, POST /api/chat, GET /healthz and GET /metrics.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New builds the router.
func New(deps Deps, cfg Config) (*Server, error) {
	if deps.Ingester == nil || deps.Answerer == nil {
		return nil, errors.New("server: ingester and answerer are required")
	}
	if cfg.IngestRetries < 0 {
		return nil, errors.New("server: ingest retries cannot be negative")
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:   echo.New(),
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("component", "server"),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				s.logger.Warn("request failed", append(attrs, "err", v.Error)...)
				return nil
			}
			s.logger.Info("request", attrs...)
			return nil
		},
	}))
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	api := e.Group("/api")
	api.POST("/scrape", s.scrape)
	api.POST("/chat", s.chat)
}

// Handler returns the router for embedding or testing.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.echo,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// handleError renders echo and routing errors in the same JSON shape as pipeline errors.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	detail := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			detail = fmt.Sprint(he.Message)
		}
	}
	_ = c.JSON(code, ErrorResponse{Status: "error", Detail: detail})
}
