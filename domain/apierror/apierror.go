// Package apierror provides the closed error taxonomy for provider calls.
// Expected failures are modeled as value types, never panics; panics are
// reserved for programming-logic violations.
package apierror

import (
	"fmt"
	"time"
)

// Kind identifies a failure category. The set is closed: every error that
// crosses a package boundary in this module carries exactly one Kind.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindQuotaExceeded  Kind = "QUOTA_EXCEEDED"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindNetwork        Kind = "NETWORK_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindForbidden      Kind = "FORBIDDEN"
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindServer         Kind = "SERVER_ERROR"
	KindCircuitOpen    Kind = "CIRCUIT_OPEN"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindTimeout        Kind = "TIMEOUT"
	KindCancelled      Kind = "CANCELLED"
	KindUnknown        Kind = "UNKNOWN_ERROR"
)

// Retryable reports whether errors of this kind may be retried with backoff.
// This is a pure function of the kind. KindUnknown is retryable but the retry
// policy caps it at a single extra attempt.
func Retryable(k Kind) bool {
	switch k {
	case KindNetwork, KindRateLimited, KindServer, KindTimeout, KindUnknown:
		return true
	}
	return false
}

// Error is a classified failure (value semantics, constructed once).
type Error struct {
	Kind        Kind
	Retryable   bool
	HTTPStatus  int      // 0 when the failure never reached HTTP
	UserMessage string   // non-technician wording, safe to display
	Hints       []string // recovery hints ("wait until quota reset at ...")
	Detail      string   // sanitized technical context for diagnostics
	Cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches against another *Error by kind, so callers can use
// errors.Is(err, apierror.New(apierror.KindQuotaExceeded, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New creates an error of the given kind with a technical detail string.
// Retryable and UserMessage are derived from the kind.
func New(kind Kind, detail string) *Error {
	return &Error{
		Kind:        kind,
		Retryable:   Retryable(kind),
		UserMessage: defaultUserMessage(kind),
		Detail:      detail,
	}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an error of the given kind preserving the cause.
func Wrap(kind Kind, cause error, detail string) *Error {
	e := New(kind, detail)
	e.Cause = cause
	if detail == "" && cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// WithHint returns e with an extra recovery hint appended.
func (e *Error) WithHint(hint string) *Error {
	e.Hints = append(e.Hints, hint)
	return e
}

// WithStatus returns e with the originating HTTP status recorded.
func (e *Error) WithStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// From extracts the typed error from err, classifying untyped errors as
// KindUnknown so no failure ever leaves the module unclassified.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*Error); ok {
		return te
	}
	return Wrap(KindUnknown, err, "")
}

// QuotaExceeded builds the terminal budget error with its reset-time hint.
func QuotaExceeded(resetAt time.Time) *Error {
	e := New(KindQuotaExceeded, "daily quota budget exhausted")
	return e.WithHint("wait until quota reset at " + resetAt.UTC().Format(time.RFC3339))
}

// CircuitOpen builds the fail-fast error surfaced while the breaker is open.
func CircuitOpen(retryAt time.Time) *Error {
	e := New(KindCircuitOpen, "provider circuit is open")
	if !retryAt.IsZero() {
		e = e.WithHint("service may recover around " + retryAt.UTC().Format(time.RFC3339))
	}
	return e
}

// Validation builds a per-item transformation failure.
func Validation(detail string) *Error {
	return New(KindValidation, detail)
}

func defaultUserMessage(k Kind) string {
	switch k {
	case KindAuthentication:
		return "Your API credentials were rejected. Please re-authenticate."
	case KindQuotaExceeded:
		return "The daily request allowance is used up."
	case KindRateLimited:
		return "Too many requests right now. Slowing down."
	case KindNetwork:
		return "Could not reach the video service. Check your connection."
	case KindNotFound:
		return "The requested item does not exist."
	case KindForbidden:
		return "Access to this item is not allowed."
	case KindInvalidRequest:
		return "The request was malformed."
	case KindServer:
		return "The video service had an internal problem."
	case KindCircuitOpen:
		return "The video service is temporarily unavailable."
	case KindValidation:
		return "The service returned data in an unexpected shape."
	case KindTimeout:
		return "The request took too long and was abandoned."
	case KindCancelled:
		return "The request was cancelled."
	default:
		return "Something unexpected went wrong."
	}
}
