package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/logging"
	"github.com/labstack/echo/v4"
)

const internalErrorMessage = "An error occurred while processing the request"

// HttpResponse is the body of every error reply and of plain confirmations.
type HttpResponse struct {
	TimeStamp      time.Time `json:"timeStamp"`
	HttpStatusCode int       `json:"httpStatusCode"`
	HttpStatus     string    `json:"httpStatus"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
}

func newHttpResponse(code int, message string) HttpResponse {
	reason := strings.ToUpper(http.StatusText(code))
	return HttpResponse{
		TimeStamp:      time.Now().UTC(),
		HttpStatusCode: code,
		HttpStatus:     strings.ReplaceAll(reason, " ", "_"),
		Reason:         reason,
		Message:        strings.ToUpper(message),
	}
}

var errorStatus = []struct {
	err  error
	code int
}{
	{common.ErrBadCredentials, http.StatusBadRequest},
	{common.ErrAccountDisabled, http.StatusBadRequest},
	{common.ErrUsernameExists, http.StatusBadRequest},
	{common.ErrEmailExists, http.StatusBadRequest},
	{common.ErrIdentityNotFound, http.StatusBadRequest},
	{common.ErrEmailNotFound, http.StatusBadRequest},
	{common.ErrNotImageFile, http.StatusBadRequest},
	{common.ErrInvalidRole, http.StatusBadRequest},
	{common.ErrAccountLocked, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrTokenInvalid, http.StatusUnauthorized},
	{common.ErrForbidden, http.StatusForbidden},
	{common.ErrorNotFound, http.StatusNotFound},
}

// statusFor maps err to a status code and the message shown to the caller.
// Unknown errors become a 500 with a generic message.
func statusFor(err error) (int, string) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.code, m.err.Error()
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	}

	return http.StatusInternalServerError, internalErrorMessage
}

// errorHandler replaces echo's default handler so every failure is rendered
// as an HttpResponse. Internal details are logged, never returned.
func errorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := statusFor(err)
		ctx := c.Request().Context()
		if code >= http.StatusInternalServerError {
			logger.Error(ctx, "request failed", "path", c.Path(), "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, newHttpResponse(code, msg))
		}
		if err != nil {
			logger.Error(ctx, "write error response", "error", err)
		}
	}
}
