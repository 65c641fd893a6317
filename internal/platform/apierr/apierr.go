package apierr

import (
	"fmt"
	"net/http"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// StatusFor maps a progress error code onto an HTTP status.
func StatusFor(code progress.ErrorCode) int {
	switch code {
	case progress.CodeValidation:
		return http.StatusBadRequest
	case progress.CodeNotFound:
		return http.StatusNotFound
	case progress.CodeConflict, progress.CodeAborted:
		return http.StatusConflict
	case progress.CodeQuotaExhausted:
		return http.StatusTooManyRequests
	case progress.CodeTransient:
		return http.StatusServiceUnavailable
	case progress.CodeMalformed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// FromProgress converts a progress error, keeping its code.
func FromProgress(err error) *Error {
	if err == nil {
		return nil
	}
	code := progress.CodeOf(err)
	if code == "" {
		code = progress.CodeInternal
	}
	return New(StatusFor(code), string(code), err)
}
