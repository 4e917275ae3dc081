package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hlscache/internal/logging"
	"hlscache/internal/metrics"
	"hlscache/internal/rendition"
)

const shutdownTimeout = 5 * time.Second

// Server routes HTTP requests to rendition units and aggregators.
type Server struct {
	bind    string
	factory *rendition.Factory
	logger  *slog.Logger
	metrics *metrics.Metrics
	router  chi.Router
}

// New builds the router. m may be nil.
func New(bind string, factory *rendition.Factory, logger *slog.Logger, m *metrics.Metrics) (*Server, error) {
	if factory == nil {
		return nil, errors.New("server requires a rendition factory")
	}
	s := &Server{
		bind:    strings.TrimSpace(bind),
		factory: factory,
		logger:  logging.NewComponentLogger(logger, "server"),
		metrics: m,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(requestMetrics(s.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/i/*", s.handleMedia)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	return r
}

// Run listens on the bind address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http server listening",
		logging.String(logging.FieldEventType, "http_listening"),
		logging.String("address", listener.Addr().String()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", logging.Error(err))
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped", logging.String(logging.FieldEventType, "http_stopped"))
	return nil
}
