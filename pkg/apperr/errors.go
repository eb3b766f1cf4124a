// Package apperr defines the stable error taxonomy used across the
// reduction pipeline. Every stage returns (or wraps into) one of these
// kinds so that the orchestrator can map failures to HTTP status codes and
// render the causal chain without inspecting stage-specific error types.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one taxonomy row from the error handling design: a stable wire
// name plus an HTTP status mapping.
type Kind string

const (
	BadRequest         Kind = "BAD_REQUEST"
	Unauthorized       Kind = "UNAUTHORIZED"
	Forbidden          Kind = "FORBIDDEN"
	NotFound           Kind = "NOT_FOUND"
	RangeUnsatisfiable Kind = "RANGE_UNSATISFIABLE"
	UpstreamIO         Kind = "UPSTREAM_IO"
	DecodeFailed       Kind = "DECODE_FAILED"
	NoValidElements    Kind = "NO_VALID_ELEMENTS"
	ResourceExhausted  Kind = "RESOURCE_EXHAUSTED"
	Timeout            Kind = "TIMEOUT"
	Internal           Kind = "INTERNAL"
)

// statusByKind is the closed mapping from taxonomy row to HTTP status.
var statusByKind = map[Kind]int{
	BadRequest:         http.StatusBadRequest,
	Unauthorized:       http.StatusUnauthorized,
	Forbidden:          http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	RangeUnsatisfiable: http.StatusRequestedRangeNotSatisfiable,
	UpstreamIO:         http.StatusBadGateway,
	DecodeFailed:       http.StatusUnprocessableEntity,
	NoValidElements:    http.StatusUnprocessableEntity,
	ResourceExhausted:  http.StatusServiceUnavailable,
	Timeout:            http.StatusGatewayTimeout,
	Internal:           http.StatusInternalServerError,
}

// Status returns the HTTP status code associated with kind. Unknown kinds
// map to 500.
func Status(kind Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a wrapping error carrying a stable Kind, a human-readable
// message, and the causal chain accumulated as the error propagated up the
// pipeline. It satisfies errors.Is/As via Unwrap and Is.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates a new Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new Error of the given kind that wraps cause, prefixing the
// message with context.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, apperr.New(apperr.BadRequest, "")) style checks work
// without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Causes walks the Unwrap chain and collects each error's message, root
// cause last, for rendering in the wire error response's caused_by array.
func Causes(err error) []string {
	var causes []string
	for err != nil {
		if ae, ok := err.(*Error); ok {
			causes = append(causes, ae.Message)
			err = ae.cause
			continue
		}
		causes = append(causes, err.Error())
		err = errors.Unwrap(err)
	}
	return causes
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
