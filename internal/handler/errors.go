package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
)

// NewHTTPErrorHandler renders every handler error as {"error": kind, "message": ...}.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := apperr.HTTPStatus(err)
		body := dto.ErrorResponse{Error: apperr.Kind(err), Message: err.Error()}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body.Error = http.StatusText(he.Code)
			body.Message = fmt.Sprint(he.Message)
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", err,
			)
			// internals stay in the log
			if body.Error == "internal" {
				body.Message = "internal server error"
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error("write error response", "error", writeErr)
		}
	}
}
