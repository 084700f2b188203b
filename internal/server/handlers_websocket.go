package server

import (
	"log/slog"

	apperrors "github.com/Lyall-A/Checkboxes/internal/errors"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleWebSocket(c echo.Context) error {
	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return apperrors.ValidationError("websocket upgrade required")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written an HTTP error to the client.
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.registry.Serve(c.Request().Context(), conn, c.RealIP()); err != nil {
		slog.WarnContext(c.Request().Context(), "WebSocket connection rejected", "error", err)
	}
	return nil
}
