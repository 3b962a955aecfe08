package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// Error represents an orchestration failure with additional context for
// troubleshooting.
type Error struct {
	// Code identifies the error type
	Code ErrorCode

	// Message is the primary error message
	Message string

	// Context provides additional details
	Context map[string]interface{}

	// Cause is the underlying error (if any)
	Cause error

	// Suggestion provides actionable guidance for resolving the error
	Suggestion string

	// Output is the tail of the offending process's output, when relevant
	Output []string
}

// ErrorCode identifies categories of errors
type ErrorCode string

const (
	// Process lifecycle errors
	ErrorCodeLaunchFailed      ErrorCode = "LAUNCH_FAILED"
	ErrorCodeReadinessTimeout  ErrorCode = "READINESS_TIMEOUT"
	ErrorCodePrematureExit     ErrorCode = "PREMATURE_EXIT"
	ErrorCodeTerminationFailed ErrorCode = "TERMINATION_FAILED"

	// Configuration errors
	ErrorCodeInvalidManifest  ErrorCode = "INVALID_MANIFEST"
	ErrorCodeDuplicateCapture ErrorCode = "DUPLICATE_CAPTURE"
)

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		var contextParts []string
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithSuggestion adds an actionable suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// WithOutput attaches the tail of the process's output
func (e *Error) WithOutput(lines []string) *Error {
	e.Output = lines
	return e
}

// ErrLaunchFailed creates an error for a command that could not be started
func ErrLaunchFailed(process string, cause error) *Error {
	return NewError(ErrorCodeLaunchFailed,
		fmt.Sprintf("process %q could not be started", process)).
		WithContext("process", process).
		WithCause(cause).
		WithSuggestion("Verify the command exists and is executable; check PATH and permissions")
}

// ErrReadinessTimeout creates an error for a pattern that never matched
func ErrReadinessTimeout(process, pattern string, timeout time.Duration, tail []string) *Error {
	return NewError(ErrorCodeReadinessTimeout,
		fmt.Sprintf("process %q did not become ready within %v", process, timeout)).
		WithContext("process", process).
		WithContext("pattern", pattern).
		WithOutput(tail).
		WithSuggestion("Check the buffered output below; the readiness pattern may no longer match the tool's log format")
}

// ErrPrematureExit creates an error for a process that exited before readiness
func ErrPrematureExit(process string, exitCode int, tail []string) *Error {
	return NewError(ErrorCodePrematureExit,
		fmt.Sprintf("process %q exited before signaling readiness", process)).
		WithContext("process", process).
		WithContext("exit_code", exitCode).
		WithOutput(tail).
		WithSuggestion("Check the buffered output below for the startup failure")
}

// ErrTerminationFailed creates an error for a teardown failure
func ErrTerminationFailed(process string, cause error) *Error {
	return NewError(ErrorCodeTerminationFailed,
		fmt.Sprintf("process %q could not be terminated", process)).
		WithContext("process", process).
		WithCause(cause).
		WithSuggestion("The process may be stuck; find it with ps and kill -9 manually")
}

// IsErrorCode checks if an error has the specified error code
func IsErrorCode(err error, code ErrorCode) bool {
	if oerr, ok := err.(*Error); ok {
		return oerr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or empty string if not
// an orchestrator Error.
func GetErrorCode(err error) ErrorCode {
	if oerr, ok := err.(*Error); ok {
		return oerr.Code
	}
	return ""
}
