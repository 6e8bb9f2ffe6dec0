// Package apperr defines the error kinds shared by the services and how
// handlers turn them into HTTP responses.
package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// Error carries a client-facing message on top of one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New builds an error of the given kind with a message safe to show to users.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func NotFound(msg string) error     { return New(ErrNotFound, msg) }
func Forbidden(msg string) error    { return New(ErrForbidden, msg) }
func Conflict(msg string) error     { return New(ErrConflict, msg) }
func InvalidState(msg string) error { return New(ErrInvalidState, msg) }
func Validation(msg string) error   { return New(ErrValidation, msg) }

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text. Unclassified errors never leak
// their internals.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if errors.Is(err, ErrInsufficientFunds) {
		return ErrInsufficientFunds.Error()
	}
	return "internal server error"
}

// JSON writes err as {"error": "..."} with the matching status.
func JSON(c echo.Context, err error) error {
	return c.JSON(Status(err), echo.Map{"error": Message(err)})
}
