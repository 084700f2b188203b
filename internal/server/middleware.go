package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	apperrors "github.com/Lyall-A/Checkboxes/internal/errors"
	"github.com/labstack/echo/v4"
)

// ErrorHandlingMiddleware renders structured errors returned by handlers.
// Echo HTTP errors pass through to the server's HTTPErrorHandler.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// HandleError logs err and writes it in the API's {"success":false,"message":...} shape.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(err)
	logError(c, structuredErr)

	if structuredErr.Type == apperrors.TypeRateLimited {
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(structuredErr.RetryAfterSeconds()))
	}
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
		"remote_ip", c.RealIP(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeRateLimited:
		slog.DebugContext(ctx, "Rate limited", append(attrs, "retry_after", err.RetryAfter)...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// handleHTTPError sends unmatched routes and method mismatches through the rate-limited
// fallback; every other Echo error gets the default rendering.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && (httpErr.Code == 404 || httpErr.Code == 405) {
		if err := s.rateLimitMiddleware(s.handleFallback)(c); err != nil {
			if err := HandleError(c, err); err != nil {
				slog.ErrorContext(c.Request().Context(), "Failed to write fallback response", "error", err)
			}
		}
		return
	}

	s.echo.DefaultHTTPErrorHandler(err, c)
}
