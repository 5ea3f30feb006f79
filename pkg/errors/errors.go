package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed API error. Code is the machine-readable discriminator
// that clients branch on; Status is the HTTP status the response layer
// uses; Err holds the underlying cause and never crosses the wire.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a sentinel error. Sentinels are compared by Code, not by
// pointer, since Clone creates derived copies.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a typed code and message to an underlying cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Clone copies a sentinel with a more specific message, keeping its code
// and status so client branching is unaffected.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	derived := *err
	if message != "" {
		derived.Message = message
	}
	return &derived
}

// FromError normalises any error into an *Error. Unknown errors become
// internal errors so their details stay out of responses.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Sentinels for the API surface. Domain-specific ones carry the status the
// corresponding endpoint documents.
var (
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrNotPublishable   = New("NOT_PUBLISHABLE", http.StatusUnprocessableEntity, "event is not ready to publish")
	ErrEventNotEditable = New("EVENT_NOT_EDITABLE", http.StatusConflict, "event can no longer be edited")
	ErrSoldOut          = New("SOLD_OUT", http.StatusConflict, "ticket type is sold out")
	ErrPaymentFailed    = New("PAYMENT_FAILED", http.StatusBadGateway, "payment verification failed")
	ErrHandoffExpired   = New("HANDOFF_EXPIRED", http.StatusGone, "payment session expired or not tracked")
	ErrCacheMiss        = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)
