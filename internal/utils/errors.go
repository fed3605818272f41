package utils

import (
	"errors"
	"fmt"

	"github.com/dl-alexandre/dirsync/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Filesystem errors (20-29)
	ExitFileNotFound     = 20
	ExitPermissionDenied = 21
	ExitIOError          = 22
	ExitTypeConflict     = 23
	// Remote session errors (30-39)
	ExitNetworkError = 30
	ExitTimeout      = 31
	ExitSessionLost  = 32
	ExitAuthFailed   = 33
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	ExitInvalidPath     = 41
	ExitNoBackend       = 42
	// Interrupted
	ExitCancelled = 50
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeIOError          = "IO_ERROR"
	ErrCodeTypeConflict     = "TYPE_CONFLICT"
	ErrCodeNetworkError     = "NETWORK_ERROR"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeSessionLost      = "SESSION_LOST"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeInvalidArgument  = "INVALID_ARGUMENT"
	ErrCodeInvalidPath      = "INVALID_PATH"
	ErrCodeNoBackend        = "NO_BACKEND"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeUnknown          = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

// WithReplyCode records the FTP reply code that caused the error.
func (b *CLIErrorBuilder) WithReplyCode(code int) *CLIErrorBuilder {
	b.err.ReplyCode = code
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithSuggestedAction(action string) *CLIErrorBuilder {
	b.err.SuggestedAction = action
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeFileNotFound:     ExitFileNotFound,
		ErrCodePermissionDenied: ExitPermissionDenied,
		ErrCodeIOError:          ExitIOError,
		ErrCodeTypeConflict:     ExitTypeConflict,
		ErrCodeNetworkError:     ExitNetworkError,
		ErrCodeTimeout:          ExitTimeout,
		ErrCodeSessionLost:      ExitSessionLost,
		ErrCodeAuthFailed:       ExitAuthFailed,
		ErrCodeInvalidArgument:  ExitInvalidArgument,
		ErrCodeInvalidPath:      ExitInvalidPath,
		ErrCodeNoBackend:        ExitNoBackend,
		ErrCodeCancelled:        ExitCancelled,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// ExitCodeFor returns the process exit code for any error.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return GetExitCode(appErr.CLIError.Code)
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
	cause    error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

// WrapAppError creates an AppError that keeps cause reachable through errors.Is/As.
func WrapAppError(cliErr types.CLIError, cause error) *AppError {
	return &AppError{CLIError: cliErr, cause: cause}
}
