package handler

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"taskhub/internal/errors"
)

// ErrorHandler renders every error as errors.ErrorResponse. Detail carries the underlying
// error only in development.
func ErrorHandler(logger *slog.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body, cause := render(err)
		if development && cause != nil {
			body.Detail = cause.Error()
		}
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("method", c.Request().Method),
				slog.String("uri", c.Request().RequestURI),
				slog.Any("error", err),
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.ErrorContext(c.Request().Context(), "write error response", slog.Any("error", writeErr))
		}
	}
}

func render(err error) (int, errors.ErrorResponse, error) {
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		cause := he.Internal
		switch msg := he.Message.(type) {
		case errors.ErrorResponse:
			return he.Code, msg, cause
		case string:
			return he.Code, errors.ErrorResponse{Error: msg, Code: statusCode(he.Code)}, cause
		default:
			return he.Code, errors.ErrorResponse{Error: fmt.Sprint(msg), Code: statusCode(he.Code)}, cause
		}
	}

	httpErr := errors.MapErrorToHTTP(err)
	return httpErr.StatusCode, httpErr.ToErrorResponse(), err
}

// statusCode turns 404 into NOT_FOUND.
func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// fail converts a service error into an HTTP error, keeping the cause for logs.
func fail(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func invalidRequest(err error) error {
	he := echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: "invalid request body",
		Code:  "VALIDATION_ERROR",
	})
	if err != nil {
		he = he.SetInternal(err)
	}
	return he
}

func validationFailed(message string, err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  "VALIDATION_ERROR",
	}).SetInternal(err)
}
