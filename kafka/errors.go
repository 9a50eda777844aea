package kafka

import (
	"strings"

	"github.com/kbukum/flowkit/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"broker not available",
	"leader not available",
	"connection closed",
	"dial tcp",
	"network exception",
}

var retryablePatterns = []string{
	"temporary",
	"request timed out",
	"not enough replicas",
	"offset out of range",
}

func matches(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError reports whether err is a connection-level failure.
func IsConnectionError(err error) bool {
	return matches(err, connectionPatterns)
}

// IsRetryableError reports whether a write that failed with err is worth
// another attempt.
func IsRetryableError(err error) bool {
	return IsConnectionError(err) || matches(err, retryablePatterns)
}

// classify maps a client error to an AppError carrying the topic.
func classify(err error, topic string) *errors.AppError {
	if IsConnectionError(err) {
		return errors.ConnectionFailed("kafka", err).WithDetail("topic", topic)
	}
	appErr := errors.Internal(err).WithDetail("topic", topic)
	if IsRetryableError(err) {
		appErr.Retryable = true
	}
	return appErr
}
