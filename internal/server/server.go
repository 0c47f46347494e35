// Package server wires the chi router, middleware chain and handlers
// into the HTTP surface of the service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/config"
	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/server/handlers"
	"github.com/wolfgangbures/HA-SPonlinePhotos/internal/server/middleware"
)

// Server is the HTTP front end.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	router   chi.Router
	registry *Registry
	httpSrv  *http.Server
}

// New builds a server over the given registry.
func New(cfg config.ServerConfig, rateCfg config.RateLimitConfig, registry *Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
	}
	s.router = s.buildRouter(rateCfg)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) buildRouter(rateCfg config.RateLimitConfig) chi.Router {
	r := chi.NewRouter()

	limiter := middleware.NewRateLimiter(rateCfg.RPS, rateCfg.Burst)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(limiter.Limit)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusNotFound, "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health", handlers.Health)
	r.Get("/version", handlers.Version)

	show := handlers.NewSlideshow(s.registry, s.logger)
	r.Get("/image/{entryID}/{index}", show.Image)
	r.Route("/api/slideshow/{entryID}", func(r chi.Router) {
		r.Get("/", show.Current)
		r.Get("/folders", show.Folders)
		r.Post("/refresh", show.Refresh)
		r.Post("/folder", show.SelectFolder)
		r.Post("/token/refresh", show.RefreshToken)
	})

	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}

// Start serves until the context is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	s.logger.Info("shutting down http server")
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}
