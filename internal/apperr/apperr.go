// Package apperr defines the stable error taxonomy shared across the
// pipeline, the gateway, and the HTTP surface. Kind strings are part of
// the wire contract and must not change.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindFileTooLarge      Kind = "file_too_large"
	KindTimeExceedsBudget Kind = "estimated_time_exceeds_budget"
	KindExtractionFailed  Kind = "extraction_failed"
	KindLowQuality        Kind = "low_quality"
	KindParseError        Kind = "parse_error"
	KindAiCallFailed      Kind = "ai_call_failed"
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindUnauthorized      Kind = "unauthorized"
	KindBadRequest        Kind = "bad_request"
	KindServerError       Kind = "server_error"
	KindNetworkError      Kind = "network_error"
	KindFileCorrupted     Kind = "file_corrupted"
)

// Error carries a taxonomy kind plus optional structured details that
// end up in error_details of the failure payload.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error while keeping it
// reachable through errors.Unwrap.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), cause: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail returns e with key=value added to Details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the taxonomy kind from err, unwrapping as needed.
// Errors outside the taxonomy report server_error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}

// DetailsOf returns the structured details of err, or nil.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to the response status used by the handlers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnsupportedFormat, KindBadRequest, KindTimeExceedsBudget, KindLowQuality, KindParseError:
		return http.StatusBadRequest
	case KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the gateway may retry a call that failed
// with this kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetworkError, KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}
