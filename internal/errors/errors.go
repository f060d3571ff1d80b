package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a specific error type for better error handling
type ErrorCode string

const (
	// Startup errors - these are fatal and abort the process before the
	// reconcile loop starts
	ErrCodeConfigLoad         ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeExecutableNotFound ErrorCode = "EXECUTABLE_NOT_FOUND"

	// Registry errors
	ErrCodeRegistryUnavailable ErrorCode = "REGISTRY_UNAVAILABLE"

	// Rendering errors
	ErrCodeRenderFailed ErrorCode = "RENDER_FAILED"
	ErrCodeConfigWrite  ErrorCode = "CONFIG_WRITE_FAILED"

	// Reload errors
	ErrCodeReloadFailed    ErrorCode = "RELOAD_FAILED"
	ErrCodeReloadTimeout   ErrorCode = "RELOAD_TIMEOUT"
	ErrCodeReloadThrottled ErrorCode = "RELOAD_THROTTLED"
)

// SyncError represents a structured error with context
type SyncError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Cause     error                  `json:"-"` // Original error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error code
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMetadata adds metadata to the error
func (e *SyncError) WithMetadata(key string, value interface{}) *SyncError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsRetryable returns true if the error might be resolved by retrying
// on a later tick. Everything except startup failures is retryable.
func (e *SyncError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeConfigLoad, ErrCodeExecutableNotFound:
		return false
	default:
		return true
	}
}

// NewError creates a new SyncError
func NewError(code ErrorCode, component, message string) *SyncError {
	return &SyncError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewErrorWithCause creates a new SyncError with an underlying cause
func NewErrorWithCause(code ErrorCode, component, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
		Details:   cause.Error(),
	}
}

// WrapError wraps an existing error with SyncError structure
func WrapError(err error, code ErrorCode, component, message string) *SyncError {
	if err == nil {
		return nil
	}

	return &SyncError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Details:   err.Error(),
	}
}

// Common error constructors for frequently used errors

// NewRegistryUnavailableError creates an error for an unreachable registry
func NewRegistryUnavailableError(endpoint string, cause error) *SyncError {
	return NewErrorWithCause(
		ErrCodeRegistryUnavailable,
		"registry",
		fmt.Sprintf("Registry at %s is unavailable", endpoint),
		cause,
	).WithMetadata("endpoint", endpoint)
}

// NewRenderError creates an error for a template rendering failure
func NewRenderError(cause error) *SyncError {
	return NewErrorWithCause(
		ErrCodeRenderFailed,
		"renderer",
		"Failed to render configuration template",
		cause,
	)
}

// NewConfigWriteError creates an error for a configuration write failure
func NewConfigWriteError(path string, cause error) *SyncError {
	return NewErrorWithCause(
		ErrCodeConfigWrite,
		"renderer",
		fmt.Sprintf("Failed to write configuration to %s", path),
		cause,
	).WithMetadata("path", path)
}

// NewReloadFailedError creates an error for a non-zero reload exit status
func NewReloadFailedError(cause error) *SyncError {
	return NewErrorWithCause(
		ErrCodeReloadFailed,
		"reload",
		"Reload command exited with non-zero status",
		cause,
	)
}

// NewReloadTimeoutError creates an error for a reload that exceeded its deadline
func NewReloadTimeoutError(timeout time.Duration) *SyncError {
	return NewError(
		ErrCodeReloadTimeout,
		"reload",
		fmt.Sprintf("Reload command did not finish within %v", timeout),
	).WithMetadata("timeout", timeout.String())
}

// NewReloadThrottledError creates an error for a rate-limited reload attempt
func NewReloadThrottledError() *SyncError {
	return NewError(
		ErrCodeReloadThrottled,
		"orchestrator",
		"Reload attempt throttled by rate limiter",
	)
}

// Helper functions

// IsSyncError checks if an error is a SyncError
func IsSyncError(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.IsRetryable()
	}
	return false
}
