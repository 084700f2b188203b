package server

import (
	apperrors "github.com/Lyall-A/Checkboxes/internal/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.admit(c); err != nil {
			return err
		}
		return next(c)
	}
}

// admit consults the limiter for the request's client address.
func (s *Server) admit(c echo.Context) error {
	client := c.RealIP()
	admission := s.limiter.Admit(client)
	if admission.Allowed {
		return nil
	}
	return apperrors.RateLimitedError(admission.RetryAfter).WithField("client", client)
}
