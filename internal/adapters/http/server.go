// Package http is the HTTP adapter: it builds the application's middleware
// chain and views and serves them next to the health endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/jsamuelsen/go-request-context/internal/platform/config"
)

// Server wraps http.Server and provides graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     *config.ServerConfig
	logger     *slog.Logger
}

// NewServer creates a server for handler. Request bodies are capped at
// cfg.MaxRequestSize.
func NewServer(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      http.MaxBytesHandler(handler, cfg.MaxRequestSize),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		config: cfg,
		logger: logger,
	}
}

// Start listens in the background. The returned channel receives a listen
// error, if any, and is closed when the server stops.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		s.logger.Info("starting HTTP server",
			slog.String("addr", s.httpServer.Addr),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	return errCh
}

// Shutdown waits for in-flight requests, and so for their request context
// teardowns, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped")

	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
