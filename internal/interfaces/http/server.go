package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithTimeouts sets the read and write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		if read > 0 {
			s.httpServer.ReadTimeout = read
		}
		if write > 0 {
			s.httpServer.WriteTimeout = write
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wraps http.Server with start and graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", logging.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, errors.CodeInternal, "http server failed")
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "http server shutdown failed")
	}
	return nil
}

// Handler returns the served handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
