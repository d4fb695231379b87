package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/longregen/alicia-edge/internal/adapters/http/handlers"
	"github.com/longregen/alicia-edge/internal/adapters/http/middleware"
	"github.com/longregen/alicia-edge/pkg/otel"
)

// Config configures the debug server.
type Config struct {
	Addr        string
	ServiceName string
	Version     string
	// Token guards the /api/v1 input routes; empty leaves them open
	Token string
}

// Server is the local debug surface of the device: health checks,
// Prometheus metrics, the assistant status and simulated inputs.
type Server struct {
	config Config
	device handlers.Device
	router *chi.Mux

	mu         sync.Mutex
	httpServer *http.Server
	stopped    bool
}

func NewServer(cfg Config, device handlers.Device) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "alicia-edge"
	}
	s := &Server{
		config: cfg,
		device: device,
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	r.Use(otel.Middleware(s.config.ServiceName))

	healthHandler := handlers.NewHealthHandler(s.config.Version)
	detailedHealthHandler := handlers.NewHealthHandlerWithDeps(s.config.Version, s.device)
	r.Get("/healthz", healthHandler.Handle)
	r.Get("/readyz", detailedHealthHandler.HandleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	deviceHandler := handlers.NewDeviceHandler(s.device)
	r.Get("/status", deviceHandler.Status)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.DebugToken(s.config.Token))

		r.Post("/wakeup", deviceHandler.Wakeup)
		r.Post("/text", deviceHandler.Text)
		r.Post("/network", deviceHandler.Network)
		r.Post("/volume", deviceHandler.Volume)
		r.Post("/mute", deviceHandler.Mute)
		r.Post("/prompt", deviceHandler.Prompt)
		r.Post("/userinfo", deviceHandler.UserInfo)
		r.Post("/dump", deviceHandler.Dump)
	})

	s.router = r
}

// Start serves until Stop is called. A clean shutdown returns nil, and a
// Stop that lands before the listener is up makes Start return at once.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("debug server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	slog.Info("shutting down debug server")
	return srv.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
