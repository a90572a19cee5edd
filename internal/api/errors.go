package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/auth"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int, err error) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
		Err:        err,
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, nil)
}

// NewInvalidInputError is a bad request whose message tells the client what
// was wrong.
func NewInvalidInputError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
	}
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, nil)
}

func NewInternalServerError(err error) *ApiError {
	return newApiError(http.StatusInternalServerError, err)
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, nil)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, nil)
}

func NewMethodNotAllowedError() *ApiError {
	return newApiError(http.StatusMethodNotAllowed, nil)
}

func NewConflictError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    msg,
	}
}

func NewTooManyRequestsError() *ApiError {
	return newApiError(http.StatusTooManyRequests, nil)
}

func NewNotImplementedError() *ApiError {
	return newApiError(http.StatusNotImplemented, nil)
}

func NewServiceUnavailableError(err error) *ApiError {
	return newApiError(http.StatusServiceUnavailable, err)
}

// errorFor maps a domain error to the response the client gets.
func errorFor(err error) *ApiError {
	var apiErr *ApiError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, association.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken):
		return NewUnauthorizedError()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &ApiError{StatusCode: http.StatusUnauthorized, Message: "invalid email or password"}
	case errors.Is(err, auth.ErrEmailTaken):
		return NewConflictError("email already registered")
	case errors.Is(err, auth.ErrInvalidInput):
		return NewInvalidInputError(inputMessage(err))
	case errors.Is(err, auth.ErrUnsupported):
		return NewNotImplementedError()
	case errors.Is(err, association.ErrUnknownKind),
		errors.Is(err, association.ErrInvalidTarget),
		errors.Is(err, database.ErrInvalidReference):
		return NewBadRequestError()
	case errors.Is(err, association.ErrTargetNotFound),
		errors.Is(err, database.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, database.ErrConflict):
		return NewConflictError("already exists")
	case errors.Is(err, feed.ErrHubClosed):
		return NewServiceUnavailableError(err)
	}
	return NewInternalServerError(err)
}

// inputMessage returns the last line of a joined validation error, which
// names the offending field.
func inputMessage(err error) string {
	lines := strings.Split(err.Error(), "\n")
	return lines[len(lines)-1]
}
