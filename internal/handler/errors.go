package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
	"github.com/grx1242064203-bit/fund-calendar/internal/service"
)

const msgInternal = "internal server error"

// ErrorHandler renders every error returned by a handler or middleware as
// {"error": message}. Unexpected errors are logged and answered with a
// generic 500 so internal details never reach the client.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	log = log.With().Str("component", "http").Logger()
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, echo.ErrNotFound):
		return http.StatusNotFound, "endpoint not found"
	case errors.Is(err, echo.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method not allowed"
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, msgInternal
		}
		if s, ok := he.Message.(string); ok {
			return he.Code, s
		}
		return he.Code, fmt.Sprint(he.Message)
	}
	switch {
	case errors.Is(err, service.ErrInvalidPeriod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "resource already exists"
	}
	return http.StatusInternalServerError, msgInternal
}
