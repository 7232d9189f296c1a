// Package server provides the HTTP editor API over the portfolio store.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/portfolio-core/internal/capture"
	"github.com/jonathan/portfolio-core/internal/store"
)

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUnavailable indicates a collaborator the route needs is not configured.
type ErrUnavailable struct {
	What string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not available", e.What)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrInvalidCredentials:
		return http.StatusUnauthorized
	case *ErrValidation, *store.ImportValidationError:
		return http.StatusBadRequest
	case *ErrUnavailable:
		return http.StatusServiceUnavailable
	}

	switch {
	case errors.Is(err, store.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidSection),
		errors.Is(err, store.ErrNotCollection),
		errors.Is(err, store.ErrNotReorderable),
		errors.Is(err, store.ErrIndexOutOfRange),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, store.ErrDuplicateID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotLoaded), errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrNotVisible):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
