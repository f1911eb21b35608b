// Package errors provides the unified error type and factory functions used by
// every layer of trialscope. AppError carries a typed code so callers can
// separate recoverable lookup failures from the ones that must stop a batch.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller.
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the structured error type used throughout trialscope. It supports
// errors.Is / errors.As traversal through Cause.
//
// Usage:
//
//	return errors.New(errors.CodeNotFound, "molecule CHEMBL25 not found")
//	return errors.Wrap(err, errors.CodeDatabaseError, "query trials")
//	return errors.RateLimited(5*time.Minute, "ncbi esearch throttled")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context such as ids or query values.
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// RetryAfter is the wait hinted by an upstream service. It is only
	// meaningful for CodeDataSourceRateLimited.
	RetryAfter time.Duration

	// Stack is the call-stack captured by New and Wrap. It is not part of
	// Error() output.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>: <cause>"
func (e *AppError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code.String(), e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error. If err is nil,
// Wrap returns nil.
//
// When code is CodeUnknown and err already carries an AppError, the original
// code and RetryAfter hint are preserved.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	var retryAfter time.Duration
	var ae *AppError
	if errors.As(err, &ae) {
		if code == CodeUnknown {
			code = ae.Code
		}
		if code == ae.Code {
			retryAfter = ae.RetryAfter
		}
	}
	return &AppError{
		Code:       code,
		Message:    message,
		Cause:      err,
		RetryAfter: retryAfter,
		Stack:      captureStack(1),
	}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err's chain contains CodeNotFound.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsRateLimited reports whether err's chain contains CodeDataSourceRateLimited.
func IsRateLimited(err error) bool {
	return IsCode(err, CodeDataSourceRateLimited)
}

// RetryAfterOf returns the retry hint of the first rate-limited AppError in
// err's chain, or zero.
func RetryAfterOf(err error) time.Duration {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == CodeDataSourceRateLimited {
			return ae.RetryAfter
		}
		err = errors.Unwrap(err)
	}
	return 0
}

// GetCode extracts the ErrorCode from the first *AppError found in err's chain.
// If no *AppError is present, CodeUnknown is returned.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidParam,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Unavailable constructs a CodeDataSourceUnavailable AppError.
func Unavailable(message string) *AppError {
	return &AppError{
		Code:    CodeDataSourceUnavailable,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Malformed constructs a CodeDataSourceParseError AppError.
func Malformed(message string) *AppError {
	return &AppError{
		Code:    CodeDataSourceParseError,
		Message: message,
		Stack:   captureStack(1),
	}
}

// RateLimited constructs a CodeDataSourceRateLimited AppError carrying the
// upstream retry hint.
func RateLimited(retryAfter time.Duration, message string) *AppError {
	return &AppError{
		Code:       CodeDataSourceRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
		Stack:      captureStack(1),
	}
}
