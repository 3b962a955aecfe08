package orchestrator

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestError_Format tests the structured error string
func TestError_Format(t *testing.T) {
	err := NewError(ErrorCodeLaunchFailed, "boom").
		WithContext("process", "preview").
		WithCause(fmt.Errorf("exec: not found")).
		WithSuggestion("install the tool")

	msg := err.Error()
	assert.Contains(t, msg, "[LAUNCH_FAILED] boom")
	assert.Contains(t, msg, "process=preview")
	assert.Contains(t, msg, "Cause: exec: not found")
	assert.Contains(t, msg, "Suggestion: install the tool")
}

// TestError_Unwrap tests errors.Is through the Cause chain
func TestError_Unwrap(t *testing.T) {
	root := fmt.Errorf("root cause")
	err := NewError(ErrorCodeTerminationFailed, "stuck").WithCause(root)

	assert.True(t, errors.Is(err, root))

	var oerr *Error
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, ErrorCodeTerminationFailed, oerr.Code)
}

// TestIsErrorCode tests code matching on orchestrator and foreign errors
func TestIsErrorCode(t *testing.T) {
	err := ErrReadinessTimeout("preview", `ready`, 30*time.Second, nil)
	assert.True(t, IsErrorCode(err, ErrorCodeReadinessTimeout))
	assert.False(t, IsErrorCode(err, ErrorCodePrematureExit))
	assert.False(t, IsErrorCode(fmt.Errorf("plain"), ErrorCodeReadinessTimeout))
	assert.False(t, IsErrorCode(nil, ErrorCodeReadinessTimeout))
}

// TestGetErrorCode tests code extraction
func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodePrematureExit, GetErrorCode(ErrPrematureExit("p", 1, nil)))
	assert.Equal(t, ErrorCode(""), GetErrorCode(fmt.Errorf("plain")))
}

// TestErrConstructors tests that the constructors fill context and output
func TestErrConstructors(t *testing.T) {
	tail := []string{"line one", "line two"}

	rt := ErrReadinessTimeout("preview", `Listening on (?P<PORT>\d+)`, 10*time.Second, tail)
	assert.Equal(t, "preview", rt.Context["process"])
	assert.Equal(t, `Listening on (?P<PORT>\d+)`, rt.Context["pattern"])
	assert.Equal(t, tail, rt.Output)
	assert.Contains(t, rt.Message, "10s")

	pe := ErrPrematureExit("browser", 127, tail)
	assert.Equal(t, 127, pe.Context["exit_code"])
	assert.Equal(t, tail, pe.Output)

	lf := ErrLaunchFailed("browser", fmt.Errorf("no such file"))
	assert.ErrorIs(t, lf, lf.Cause)
	assert.NotEmpty(t, lf.Suggestion)
}
