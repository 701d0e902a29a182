package provider

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common provider failures.
var (
	ErrContextLengthExceeded   = errors.New("context length exceeded")
	ErrContentBlocked          = errors.New("content blocked by safety filters")
	ErrRateLimit               = errors.New("rate limit exceeded")
	ErrInvalidModel            = errors.New("invalid model")
	ErrAuthentication          = errors.New("authentication failed")
	ErrNetwork                 = errors.New("network error")
	ErrServiceUnavailable      = errors.New("service unavailable")
	ErrToolCallingNotSupported = errors.New("tool calling not supported")
	ErrInvalidRequest          = errors.New("invalid request")
)

// sentinels maps each code to its sentinel so Error participates in
// errors.Is matching.
var sentinels = map[ErrorCode]error{
	ErrorCodeContextLength:  ErrContextLengthExceeded,
	ErrorCodeContentBlocked: ErrContentBlocked,
	ErrorCodeRateLimit:      ErrRateLimit,
	ErrorCodeInvalidModel:   ErrInvalidModel,
	ErrorCodeAuth:           ErrAuthentication,
	ErrorCodeNetwork:        ErrNetwork,
	ErrorCodeUnavailable:    ErrServiceUnavailable,
	ErrorCodeTooling:        ErrToolCallingNotSupported,
	ErrorCodeInvalidRequest: ErrInvalidRequest,
}

// ErrorCode classifies a provider failure.
type ErrorCode string

const (
	ErrorCodeContextLength  ErrorCode = "context_length_exceeded"
	ErrorCodeContentBlocked ErrorCode = "content_blocked"
	ErrorCodeRateLimit      ErrorCode = "rate_limit"
	ErrorCodeInvalidModel   ErrorCode = "invalid_model"
	ErrorCodeAuth           ErrorCode = "authentication_failed"
	ErrorCodeNetwork        ErrorCode = "network_error"
	ErrorCodeUnavailable    ErrorCode = "service_unavailable"
	ErrorCodeTooling        ErrorCode = "tool_calling_not_supported"
	ErrorCodeInvalidRequest ErrorCode = "invalid_request"
)

// Error wraps a backend failure with a stable code and retry hint.
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retryable  bool
	RetryAfter *time.Duration
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the code's sentinel and the backend error, so
// errors.Is(err, ErrRateLimit) and errors.As against the SDK type both work.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := sentinels[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Underlying != nil {
		errs = append(errs, e.Underlying)
	}
	return errs
}

// IsRetryable reports whether a retry might succeed.
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

// RetryAfter returns the backend's suggested wait, if it sent one.
func RetryAfter(err error) *time.Duration {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.RetryAfter
	}
	return nil
}
