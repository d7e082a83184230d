/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package healthcheck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/acronis/go-botkit/log"
	"github.com/acronis/go-botkit/service"
)

// Server serves the health/status endpoints on a dedicated address.
// It implements service.Unit interface.
type Server struct {
	URL             string
	HTTPServer      *http.Server
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	httpServerDone chan struct{}
}

var _ service.Unit = (*Server)(nil)

// NewServer creates a new health/status HTTP server for the passed handler.
// The handler is typically built with NewHandler or NewHandlerWithOpts.
func NewServer(cfg *Config, handler http.Handler, logger log.FieldLogger) *Server {
	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: time.Second * 5,
	}
	return &Server{
		URL:             "http://" + httpServer.Addr,
		HTTPServer:      httpServer,
		Logger:          logger,
		ShutdownTimeout: time.Duration(cfg.ShutdownTimeout),
		httpServerDone:  make(chan struct{}),
	}
}

// Start starts the health HTTP server in a blocking way.
// It's supposed that this method will be called in a separate goroutine.
// If a fatal error occurs, it will be sent to the fatalError channel.
func (s *Server) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)

	logger.Info("starting health HTTP server...")

	listener, err := net.Listen("tcp", s.HTTPServer.Addr)
	if err != nil {
		logger.Error("health HTTP server error", log.Error(err))
		fatalError <- err
		return
	}

	if err = s.HTTPServer.Serve(listener); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("health HTTP server closed")
			return
		}
		logger.Error("health HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
}

// Stop stops the health HTTP server. A graceful stop gives in-flight requests
// ShutdownTimeout to finish.
func (s *Server) Stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing health HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("health HTTP server closing error", log.Error(err))
			return err
		}
		<-s.httpServerDone // Wait for the listener to be closed.
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.Logger.Info("shutting down health HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("health HTTP server shutting down error", log.Error(err))
		return err
	}
	s.Logger.Info("health HTTP server shut down")
	<-s.httpServerDone // Wait for the listener to be closed.
	return nil
}
