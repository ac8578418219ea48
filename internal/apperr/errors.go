// Package apperr holds the error kinds surfaced by the prediction and
// conversation paths and maps them to HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownMaterial = errors.New("unknown material")
	ErrInputShape      = errors.New("input shape mismatch")
	ErrRemoteService   = errors.New("remote service error")
	ErrExplanation     = errors.New("explanation failed")
)

// Status returns the HTTP status code for err. Errors that do not wrap one
// of the package's kinds are internal errors.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownMaterial):
		return http.StatusBadRequest
	case errors.Is(err, ErrInputShape):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRemoteService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
