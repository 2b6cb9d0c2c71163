// Package apperr defines the tagged error type shared by services and
// handlers. Every failure that crosses a package boundary is classified
// into a small set of kinds so the HTTP layer can translate it into a
// status code and a public-safe message without inspecting error strings.
// Unexpected causes stay wrapped inside and are only ever logged, never
// returned to the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the outcomes the API exposes.
type Kind int

const (
	// Internal is any unexpected failure. The cause is logged server-side
	// and the client receives a generic message.
	Internal Kind = iota
	// InvalidInput means the request shape itself is malformed.
	InvalidInput
	// Unauthorized covers bad/expired/missing credentials, CSRF failures
	// and revoked or mismatched sessions. Deliberately indistinct so the
	// response does not reveal which check failed.
	Unauthorized
	// InvalidOTP means the presented code does not match the live record.
	// The record stays live, one attempt consumed.
	InvalidOTP
	// Expired means the OTP record is gone: never issued, past its TTL or
	// attempt budget spent. All three collapse to one response.
	Expired
	// Unavailable means a required collaborator (the mail transport) is
	// unreachable or unconfigured.
	Unavailable
)

// String returns the snake_case label used in logs.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case Unauthorized:
		return "unauthorized"
	case InvalidOTP:
		return "invalid_otp"
	case Expired:
		return "expired"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Status maps the kind to its HTTP status code. InvalidOTP is a
// presented-bad-credential case and shares 401 with Unauthorized; Expired
// keeps its own 410 so clients know a new code must be requested.
func (k Kind) Status() int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthorized, InvalidOTP:
		return http.StatusUnauthorized
	case Expired:
		return http.StatusGone
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged error carried between layers. Msg is safe to show a
// client; Err is the wrapped cause and stays server-side.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s = fmt.Sprintf("%s: %s", s, e.Msg)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with the given kind and public message.
func New(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

// Wrap attaches a kind and public message to an underlying cause.
func Wrap(k Kind, msg string, err error) *Error { return &Error{Kind: k, Msg: msg, Err: err} }

// From normalizes any error into *Error. Errors that are not already
// tagged become Internal so their detail cannot leak into a response.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: Internal, Err: err}
}

// Public returns the client-facing message: Msg when set, otherwise the
// default for the kind.
func (e *Error) Public() string {
	if e.Msg != "" {
		return e.Msg
	}
	switch e.Kind {
	case InvalidInput:
		return "invalid request"
	case Unauthorized:
		return "unauthorized"
	case InvalidOTP:
		return "invalid code"
	case Expired:
		return "code expired"
	case Unavailable:
		return "service unavailable"
	default:
		return "internal error"
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
