package server

import (
	"log/slog"
	"strings"

	"github.com/Lyall-A/Checkboxes/internal/logging"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const setCheckboxBodyLimit = "4K"

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestIDMiddleware())
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.httpMetrics.Middleware())
	s.echo.Use(ErrorHandlingMiddleware())

	s.registerHealthRoutes()
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.metricsRegistry)))

	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/checkboxes", s.handleGetCheckboxes)
	s.echo.POST("/set-checkbox", s.handleSetCheckbox, middleware.BodyLimit(setCheckboxBodyLimit))
	s.echo.GET("/ws", s.handleWebSocket, s.rateLimitMiddleware)

	s.echo.Any("/*", s.handleFallback, s.rateLimitMiddleware)
}

func (s *Server) setupRequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: logging.NewRequestID,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/metrics" || strings.HasPrefix(path, "/health/")
		},
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.DebugContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
