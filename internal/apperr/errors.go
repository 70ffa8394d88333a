// Package apperr defines the error taxonomy shared by the server and the
// terminal client. Callers wrap the sentinels with fmt.Errorf("%w: ...") and
// match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrAuth               = errors.New("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuth)
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUpstreamAI         = errors.New("ai upstream failed")
)

func Validation(msg string) error { return fmt.Errorf("%w: %s", ErrValidation, msg) }

func NotFound(what string) error { return fmt.Errorf("%w: %s", ErrNotFound, what) }

func Conflict(msg string) error { return fmt.Errorf("%w: %s", ErrConflict, msg) }

func Forbidden(msg string) error { return fmt.Errorf("%w: %s", ErrForbidden, msg) }

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamAI):
		return http.StatusBadGateway
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus is the inverse of HTTPStatus, used by API clients. msg is the
// server-provided error text and may be empty.
func FromStatus(code int, msg string) error {
	var base error
	switch {
	case code == http.StatusUnauthorized:
		base = ErrAuth
	case code == http.StatusForbidden:
		base = ErrForbidden
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		base = ErrValidation
	case code == http.StatusNotFound:
		base = ErrNotFound
	case code == http.StatusConflict:
		base = ErrConflict
	case code == http.StatusBadGateway:
		base = ErrUpstreamAI
	case code >= 500:
		base = ErrServiceUnavailable
	default:
		return fmt.Errorf("unexpected status %d: %s", code, msg)
	}
	msg = strings.TrimPrefix(msg, base.Error()+": ")
	if msg == "" || msg == base.Error() {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg)
}
