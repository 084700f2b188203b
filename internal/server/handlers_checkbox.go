package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	apperrors "github.com/Lyall-A/Checkboxes/internal/errors"
	"github.com/Lyall-A/Checkboxes/web"
	"github.com/labstack/echo/v4"
)

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, web.Index)
}

func (s *Server) handleGetCheckboxes(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.store.Get()); err != nil {
		return fmt.Errorf("failed to write checkboxes: %w", err)
	}
	return nil
}

func (s *Server) handleSetCheckbox(c echo.Context) error {
	index, value, err := parseSetCheckbox(c.Request().Body, s.store.Size())
	if err != nil {
		return err
	}

	if err := s.admit(c); err != nil {
		return err
	}

	if _, err := s.store.Set(index, value); err != nil {
		if errors.Is(err, domain.ErrOutOfRange) {
			return apperrors.ValidationError("checkbox out of range").WithField("checkbox", index)
		}
		return apperrors.InternalError("failed to set checkbox", err)
	}

	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleFallback(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

// parseSetCheckbox accepts {"checkbox": <integral number in [0,size)>, "state": <any non-null>}.
// Numbers like 2.0 or 1e1 count as integers; the state is coerced by truthiness.
func parseSetCheckbox(body io.Reader, size int) (int, bool, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return 0, false, apperrors.ValidationError("malformed request body").WithField("decode_error", err.Error())
	}

	num, ok := payload["checkbox"].(json.Number)
	if !ok {
		return 0, false, apperrors.ValidationError("checkbox must be a number")
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false, apperrors.ValidationError("checkbox must be an integer").WithField("checkbox", num.String())
	}
	if f < 0 || f >= float64(size) {
		return 0, false, apperrors.ValidationError("checkbox out of range").WithField("checkbox", num.String())
	}

	state, present := payload["state"]
	if !present || state == nil {
		return 0, false, apperrors.ValidationError("state is required")
	}

	return int(f), domain.Truthy(state), nil
}
