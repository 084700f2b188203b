package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/config"
	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

type checkboxStore interface {
	Get() domain.State
	Set(index int, value bool) (domain.Update, error)
	Size() int
}

type connectionRegistry interface {
	Serve(ctx context.Context, socket *websocket.Conn, remoteAddr string) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	store    checkboxStore
	limiter  domain.Admitter
	registry connectionRegistry
	upgrader websocket.Upgrader

	metricsRegistry *prometheus.Registry
	httpMetrics     *metrics.HTTPMetrics
	healthChecks    []HealthCheck
	readiness       singleflight.Group
	startTime       time.Time
}

func NewServer(cfg *config.Config, store checkboxStore, limiter domain.Admitter, registry connectionRegistry, reg *prometheus.Registry, clock clockwork.Clock, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	srv := &Server{
		echo:     e,
		config:   cfg,
		clock:    clock,
		store:    store,
		limiter:  limiter,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metricsRegistry: reg,
		httpMetrics:     metrics.NewHTTPMetrics(reg),
		healthChecks:    healthChecks,
		startTime:       clock.Now(),
	}
	e.HTTPErrorHandler = srv.handleHTTPError

	srv.registerRoutes()

	return srv
}

// Start listens on the configured address, with TLS when a key and certificate are set.
// Returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	var err error
	if s.config.TLSEnabled() {
		slog.Info("Starting server", "addr", s.config.Addr(), "tls", true)
		err = s.echo.StartTLS(s.config.Addr(), s.config.TLSCert, s.config.TLSKey)
	} else {
		slog.Info("Starting server", "addr", s.config.Addr(), "tls", false)
		err = s.echo.Start(s.config.Addr())
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted in tests without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
