// Package domainerrors defines the typed error vocabulary shared by services
// and transport. Services create errors with stable machine-readable codes;
// the HTTP layer maps codes to status codes and response bodies without ever
// leaking infrastructure error text to clients.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category with a stable wire representation.
type Code string

const (
	CodeValidation           Code = "VALIDATION_FAILED"
	CodeBadRequest           Code = "BAD_REQUEST"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeIdentityConflict     Code = "IDENTITY_CONFLICT"
	CodeJurisdictionConflict Code = "JURISDICTION_ALREADY_ADMINISTERED"
	CodePropagationTimeout   Code = "PROPAGATION_TIMEOUT"
	CodeDeadlineExceeded     Code = "DEADLINE_EXCEEDED"
	CodeUnavailable          Code = "STORE_UNAVAILABLE"
	CodeInternal             Code = "INTERNAL"
)

// Error is a domain error carrying a code, a human-readable message, optional
// field-level details, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable via errors.Is/errors.As but is never serialized to clients.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithField returns the error with a field-level detail attached. Used by
// validation to report per-field problems.
func (e *Error) WithField(field, problem string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = problem
	return e
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors so unknown failures never leak detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may safely retry the operation that
// produced err. Propagation timeouts and deadline expiries are retryable
// because profile persistence is idempotent; business-rule conflicts are not.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodePropagationTimeout, CodeDeadlineExceeded, CodeUnavailable:
		return true
	default:
		return false
	}
}

// ToHTTPStatus maps a domain error code to an HTTP status code.
func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeIdentityConflict, CodeJurisdictionConflict:
		return http.StatusConflict
	case CodePropagationTimeout:
		return http.StatusGatewayTimeout
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
