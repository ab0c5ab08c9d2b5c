package apperr

import (
	"errors"
	"net/http"
)

// Sentinel error kinds.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource conflict")
	ErrExternal   = errors.New("external service error")
	ErrInternal   = errors.New("internal error")
)

// Error is a structured application error. Message is safe to return to
// clients; Detail carries operator-level diagnostics and is only logged.
type Error struct {
	Kind       error
	StatusCode int
	Message    string
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// WithDetail attaches operator-level diagnostics to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// Validation reports bad input shape or values. No mutation was attempted.
func Validation(message string) *Error {
	return &Error{Kind: ErrValidation, StatusCode: http.StatusBadRequest, Message: message}
}

// NotFound reports an absent order, product, invoice or user.
func NotFound(message string) *Error {
	return &Error{Kind: ErrNotFound, StatusCode: http.StatusNotFound, Message: message}
}

// Conflict reports a business-rule rejection: insufficient stock, an
// already-paid order, an invalid status transition.
func Conflict(message string) *Error {
	return &Error{Kind: ErrConflict, StatusCode: http.StatusConflict, Message: message}
}

// External reports a gateway or renderer failure. Retryable.
func External(message string) *Error {
	return &Error{Kind: ErrExternal, StatusCode: http.StatusBadGateway, Message: message}
}

// Internal reports a persistence failure or transaction abort.
func Internal(message string) *Error {
	return &Error{Kind: ErrInternal, StatusCode: http.StatusInternalServerError, Message: message}
}

// Is reports whether err belongs to the given sentinel kind.
func Is(err, kind error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return errors.Is(appErr.Kind, kind)
	}
	return errors.Is(err, kind)
}

// HTTPStatus returns the status code for err, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// ClientMessage returns the user-visible message for err. Validation and
// conflict errors are precise; internal and external failures come back
// generic, full detail stays in the server log.
func ClientMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if errors.Is(appErr.Kind, ErrInternal) || errors.Is(appErr.Kind, ErrExternal) {
			return "something went wrong, please try again later"
		}
		return appErr.Message
	}
	return "something went wrong, please try again later"
}
