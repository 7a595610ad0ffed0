package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"buildsession/internal/api"
	"buildsession/internal/config"
	"buildsession/internal/monitor"
	"buildsession/internal/service"
	"buildsession/internal/session"
	"buildsession/internal/transport"
)

type Server struct {
	cfg        *config.Config
	deps       *Dependency
	manager    *session.Manager
	svc        *service.Service
	httpServer *http.Server
	// cancelRequests ends long-lived requests such as SSE streams.
	cancelRequests context.CancelFunc
	logger         *slog.Logger
}

func NewServer(cfg *config.Config, deps *Dependency) *Server {
	logger := deps.Logger

	manager, store := NewSession(cfg, deps, transport.NewWebSocket)
	svc := service.NewService(manager, store, logger)

	router := api.NewRouter(svc, logger)
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	return &Server{
		cfg:            cfg,
		deps:           deps,
		manager:        manager,
		svc:            svc,
		httpServer:     httpServer,
		cancelRequests: cancelRequests,
		logger:         logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Metrics.Enabled {
		go func() {
			if err := monitor.StartMetricsServer(ctx, s.cfg.Metrics.Addr, s.manager.Connected, s.logger); err != nil {
				s.logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "addr", s.cfg.Server.Addr, "session_id", s.cfg.Session.SessionID)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.cfg.Session.AutoConnect {
		go func() {
			if err := s.svc.Connect(ctx); err != nil {
				s.logger.Warn("Auto-connect failed", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, draining...")
	case err := <-errCh:
		s.cancelRequests()
		s.manager.Close()
		return err
	}

	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.manager.Close()
	s.cancelRequests()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.logger.Info("Server stopped gracefully")
	return nil
}
