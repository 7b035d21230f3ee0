package apperr

import (
	"errors"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindOtpInvalid   Kind = "otp_invalid"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal_error"
)

// Error is a domain failure that already carries the message the client sees.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized, KindOtpInvalid:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(messages ...string) *Error {
	return New(KindValidation, strings.Join(messages, ", "))
}

func BadRequest(message string) *Error   { return New(KindBadRequest, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func RateLimited(message string) *Error  { return New(KindRateLimited, message) }
func OtpInvalid(message string) *Error   { return New(KindOtpInvalid, message) }

func Internal(err error) *Error {
	msg := "Internal Server Error"
	if err != nil {
		msg = err.Error()
	}
	return Wrap(KindInternal, msg, err)
}

// IsKind reports whether err is, or wraps, a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
