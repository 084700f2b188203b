package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/version"
	"github.com/labstack/echo/v4"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

type readinessResult struct {
	failedCheck string
	err         error
}

// handleReadiness runs the health checks in order and reports the first failure.
// Concurrent probes share one run.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	v, _, _ := s.readiness.Do("ready", func() (any, error) {
		return s.checkReadiness(ctx), nil
	})
	result := v.(readinessResult)

	if result.err != nil {
		response := map[string]any{
			"status":       "unhealthy",
			"failed_check": result.failedCheck,
			"error":        result.err.Error(),
		}
		if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "ready"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) checkReadiness(ctx context.Context) readinessResult {
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return readinessResult{failedCheck: hc.Name, err: err}
		}
	}
	return readinessResult{}
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
