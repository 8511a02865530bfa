package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorRateLimited   ErrorCode = "RATE_LIMITED"
	ErrorConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrorNetwork       ErrorCode = "NETWORK_ERROR"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error carries a coarse taxonomy code for HTTP mapping, a machine-readable
// reason for logs, and the wrapped cause. Caller-facing text is derived from
// the code alone so upstream detail (token validity in particular) never
// leaks into responses.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
