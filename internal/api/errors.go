package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorHandler renders AppErrors as {"error", "code"}. Unknown errors become
// INTERNAL_ERROR without leaking their text.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := http.StatusInternalServerError, errorBody{Error: "an unexpected error occurred", Code: apperr.CodeInternal}

	var he *echo.HTTPError
	if appErr, ok := apperr.As(err); ok {
		status, body = appErr.Status, errorBody{Error: appErr.Message, Code: appErr.Code}
		if status >= http.StatusInternalServerError {
			logger.Error("%s %s: %v", c.Request().Method, c.Path(), err)
		}
	} else if errors.As(err, &he) {
		status = he.Code
		body = errorBody{Error: http.StatusText(he.Code), Code: codeForStatus(he.Code)}
		if msg, ok := he.Message.(string); ok {
			body.Error = msg
		}
	} else {
		logger.Error("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		logger.Error("failed to write error response: %v", werr)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case http.StatusForbidden:
		return apperr.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return apperr.CodeInternal
	}
}

// Install sets the validator and error handler on e.
func Install(e *echo.Echo) {
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler
}
