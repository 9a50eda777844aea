package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Stage lifecycle errors
const (
	// ErrCodeStageFailed indicates a stage failed while producing output.
	ErrCodeStageFailed ErrorCode = "STAGE_FAILED"
	// ErrCodeSetupFailed indicates a stage failed to acquire its resources.
	ErrCodeSetupFailed ErrorCode = "SETUP_FAILED"
	// ErrCodeTeardownFailed indicates a stage failed to release its resources.
	ErrCodeTeardownFailed ErrorCode = "TEARDOWN_FAILED"
	// ErrCodeCanceled indicates the run was stopped through its context.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Connection/Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// Definition errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidConfig indicates a configuration or topology is invalid.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeNotFound indicates a named resource is not registered.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a named resource is registered twice.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// ErrCodeInternal indicates an unexpected internal error.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeSetupFailed:        true,
	ErrCodeStageFailed:        false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
