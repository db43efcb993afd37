package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can map it to a status
// code without inspecting error strings.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindCarrier    Kind = "carrier"
	KindPlatform   Kind = "platform"
)

// Error is the single error type crossing service boundaries.
// Upstream keeps the raw carrier/platform response body for diagnostics.
type Error struct {
	Kind     Kind
	Message  string
	Upstream []byte
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Carrier wraps a failed carrier call. upstream is the raw error body
// returned by the carrier, may be nil.
func Carrier(msg string, upstream []byte, cause error) *Error {
	return &Error{Kind: KindCarrier, Message: msg, Upstream: upstream, Cause: cause}
}

// Platform wraps a failed e-commerce platform call (fulfillment push-back
// and friends). Non-fatal at the webhook boundary.
func Platform(msg string, upstream []byte, cause error) *Error {
	return &Error{Kind: KindPlatform, Message: msg, Upstream: upstream, Cause: cause}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsCarrier(err error) bool    { return KindOf(err) == KindCarrier }
func IsPlatform(err error) bool   { return KindOf(err) == KindPlatform }

// HTTPStatus maps an error to the response code the webhook/REST surface
// must emit. Unclassified errors are internal failures.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
