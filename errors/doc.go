// Package errors provides the structured error type used across flowkit.
// Every failure that leaves the engine (stage setup, processing, teardown,
// configuration, topology resolution) is an *AppError carrying a
// machine-readable code, retryable detection and the underlying cause.
package errors
