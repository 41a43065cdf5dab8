package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/newsmith/newsmith/internal/domain"
)

// GlobalErrorHandler maps errors that escape a handler to JSON responses.
// Action link handlers render their own HTML pages and never reach this.
func GlobalErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ve *ValidationError
		if errors.As(err, &ve) {
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message, "title": "validation error"})
			return
		}

		switch {
		case errors.Is(err, domain.ErrNotFound):
			_ = c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			return
		case errors.Is(err, domain.ErrConflict):
			_ = c.JSON(http.StatusConflict, map[string]string{"error": "conflicting state"})
			return
		case errors.Is(err, domain.ErrDuplicate):
			_ = c.JSON(http.StatusConflict, map[string]string{"error": "duplicate story"})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprintf("%v", he.Message)
			_ = c.JSON(he.Code, map[string]string{"error": msg})
			return
		}

		slog.Error("Unhandled error", "error", err)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
