package progress

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes progress pipeline failure semantics.
type ErrorCode string

const (
	CodeValidation     ErrorCode = "validation"
	CodeNotFound       ErrorCode = "not_found"
	CodeConflict       ErrorCode = "conflict"
	CodeQuotaExhausted ErrorCode = "quota_exhausted"
	CodeTransient      ErrorCode = "transient"
	CodeMalformed      ErrorCode = "malformed"
	CodeAborted        ErrorCode = "aborted"
	CodeInternal       ErrorCode = "internal"
)

// Error is the canonical progress error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a progress error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with progress error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// Validation is shorthand for a validation error without a cause.
func Validation(op, format string, args ...any) error {
	return NewError(CodeValidation, op, fmt.Sprintf(format, args...), nil)
}

// IsCode checks whether err (or a wrapped err) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var pErr *Error
	if !errors.As(err, &pErr) {
		return false
	}
	return pErr.Code == code
}

// CodeOf extracts the progress error code when available.
func CodeOf(err error) ErrorCode {
	var pErr *Error
	if !errors.As(err, &pErr) {
		return ""
	}
	return pErr.Code
}
