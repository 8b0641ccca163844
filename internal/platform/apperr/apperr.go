// Package apperr defines the error taxonomy shared by all services and the
// JSON envelope handlers use to report results. Expected failures (validation,
// conflicts, missing records, missing authentication) travel as values of
// *Error; anything else is a server error and only a generic message key
// reaches the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "notFound"
	KindUnauthenticated Kind = "unauthenticated"
	KindServer          Kind = "server"
)

// Error is an expected, client-reportable failure.
type Error struct {
	Kind       Kind        `json:"type"`
	MessageKey string      `json:"messageKey"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.MessageKey)
}

func Validation(messageKey string, details interface{}) *Error {
	return &Error{Kind: KindValidation, MessageKey: messageKey, Details: details}
}

func Conflict(messageKey string) *Error {
	return &Error{Kind: KindConflict, MessageKey: messageKey}
}

func NotFound(messageKey string) *Error {
	return &Error{Kind: KindNotFound, MessageKey: messageKey}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, MessageKey: "unauthenticated"}
}

// As unwraps err into an *Error if it is one.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

// OK writes a success envelope.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope{Data: data})
}

// Fail writes a failure envelope for err. Unexpected errors are logged with
// request context and rendered as a generic server error.
func Fail(c echo.Context, log zerolog.Logger, err error) error {
	if appErr, ok := As(err); ok {
		return c.JSON(statusFor(appErr.Kind), envelope{Error: appErr})
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Msg("unhandled error")

	return c.JSON(http.StatusInternalServerError, envelope{
		Error: &Error{Kind: KindServer, MessageKey: "serverError"},
	})
}
