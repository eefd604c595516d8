// Package server runs the HTTP listener and owns graceful shutdown of
// long-lived event streams.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"streamview/internal/config"
	"streamview/internal/constants"
	"streamview/internal/logger"
	"streamview/pkg/health"
)

type Server struct {
	http   *http.Server
	conns  *ConnRegistry
	drain  *health.DrainChecker
	grace  time.Duration
	logger logger.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New builds a server for handler. Every request context derives from a base
// context that Shutdown cancels, so open streams end as soon as shutdown
// starts.
func New(cfg config.ServerConfig, handler http.Handler, drain *health.DrainChecker, log logger.Logger) *Server {
	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = constants.DefaultShutdownGrace
	}
	if drain == nil {
		drain = health.NewDrainChecker()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	conns := NewConnRegistry()

	s := &Server{
		conns:      conns,
		drain:      drain,
		grace:      grace,
		logger:     log,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
		ConnState:         conns.Track,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

func (s *Server) Addr() string {
	return s.http.Addr
}

func (s *Server) Conns() *ConnRegistry {
	return s.conns
}

// ListenAndServe returns nil after a shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Infow("HTTP server starting", "addr", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown marks the server draining, ends every request context and waits
// up to the grace period for handlers to return. Connections still open after
// that are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.drain.SetDraining()
	s.cancelBase()

	graceCtx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()

	s.logger.Infow("Shutting down HTTP server",
		"grace", s.grace.String(),
		"open_connections", s.conns.Len(),
	)

	err := s.http.Shutdown(graceCtx)
	if err == nil {
		return nil
	}

	closed := s.conns.CloseAll()
	s.logger.Warnw("Grace period elapsed, closing connections",
		"closed_connections", closed,
		"error", err,
	)
	if closeErr := s.http.Close(); closeErr != nil {
		return fmt.Errorf("force close: %w", closeErr)
	}
	return nil
}
