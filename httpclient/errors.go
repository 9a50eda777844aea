package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/kbukum/flowkit/errors"
)

// ErrorCode classifies request failures.
type ErrorCode int

const (
	// ErrCodeTimeout is a request that ran out of time.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection is a failure below HTTP: refused, DNS, reset.
	ErrCodeConnection
	// ErrCodeRejected is a 4xx other than 429: the request itself is wrong.
	ErrCodeRejected
	// ErrCodeRateLimit is a 429.
	ErrCodeRateLimit
	// ErrCodeServer is a 5xx.
	ErrCodeServer
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeRejected:
		return "rejected"
	case ErrCodeRateLimit:
		return "rate_limit"
	case ErrCodeServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a classified request failure.
type Error struct {
	// StatusCode is 0 for failures below HTTP.
	StatusCode int
	Code       ErrorCode
	Retryable  bool
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http %s: status %d", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("http %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transportError(err error, timedOut bool) *Error {
	if timedOut {
		return &Error{Code: ErrCodeTimeout, Retryable: true, Err: err}
	}
	return &Error{Code: ErrCodeConnection, Retryable: true, Err: err}
}

// ClassifyStatus returns nil for 2xx and a typed error otherwise.
func ClassifyStatus(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: body}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		e.Code, e.Retryable = ErrCodeRateLimit, true
	case status >= 400 && status < 500:
		e.Code = ErrCodeRejected
	case status >= 500:
		e.Code, e.Retryable = ErrCodeServer, true
	default:
		e.Code = ErrCodeServer
	}
	return e
}

// IsRetryable reports whether err is a classified failure worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// IsRejected reports whether the server refused the request as invalid.
func IsRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeRejected
}

// toAppError maps a final failure for url onto the application error codes.
func toAppError(err error, url string) *apperrors.AppError {
	var e *Error
	if !errors.As(err, &e) {
		return apperrors.Internal(err)
	}
	switch e.Code {
	case ErrCodeTimeout:
		return apperrors.Timeout("http " + url).WithCause(err)
	case ErrCodeConnection:
		return apperrors.ConnectionFailed("http "+url, err)
	case ErrCodeRejected:
		return apperrors.InvalidInput("value", err.Error()).WithCause(err).WithDetail("status", e.StatusCode)
	default:
		return apperrors.ServiceUnavailable("http "+url).WithCause(err).WithDetail("status", e.StatusCode)
	}
}
