package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType categorizes completion failures for retry decisions.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadRequest represents malformed request errors.
	ErrorTypeBadRequest
	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified completion failure.
type Error struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a classification.
func NewError(errType ErrorType, statusCode int, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Type: errType, StatusCode: statusCode, Message: msg, Err: err}
}

// ClassifyStatus maps an HTTP status code to an error type.
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeTransient
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryable reports whether the error is worth another attempt.
// Everything is retried except context cancellation and client-side
// request errors, so one flaky response does not sink a whole session.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		switch lerr.Type {
		case ErrorTypeAuth, ErrorTypeBadRequest:
			return false
		}
	}
	return true
}
