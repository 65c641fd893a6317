package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

// MapError maps infrastructure failures into progress error codes.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *progress.Error
	if errors.As(err, &pErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrAbort):
		return progress.Wrap(progress.CodeAborted, op, err)
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, badger.ErrKeyNotFound):
		return progress.Wrap(progress.CodeNotFound, op, err)
	case errors.Is(err, ErrQuotaExhausted):
		return progress.Wrap(progress.CodeQuotaExhausted, op, err)
	case errors.Is(err, ErrConflict), errors.Is(err, badger.ErrConflict):
		return progress.Wrap(progress.CodeConflict, op, err)
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return progress.Wrap(progress.CodeTransient, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := strings.TrimSpace(pgErr.Code)
		switch {
		case strings.HasPrefix(code, "53"), code == "54000":
			return progress.Wrap(progress.CodeQuotaExhausted, op, err) // insufficient_resources / program_limit
		case code == "40001", code == "40P01", code == "55P03", code == "23505":
			return progress.Wrap(progress.CodeConflict, op, err)
		case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"):
			return progress.Wrap(progress.CodeTransient, op, err)
		case strings.HasPrefix(code, "22"):
			return progress.Wrap(progress.CodeMalformed, op, err)
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "resource-exhausted"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "too many connections"),
		strings.HasPrefix(msg, "oom "):
		return progress.Wrap(progress.CodeQuotaExhausted, op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "conflict"):
		return progress.Wrap(progress.CodeConflict, op, err)
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporar"):
		return progress.Wrap(progress.CodeTransient, op, err)
	case strings.Contains(msg, "invalid character"),
		strings.Contains(msg, "cannot unmarshal"):
		return progress.Wrap(progress.CodeMalformed, op, err)
	default:
		return progress.Wrap(progress.CodeInternal, op, err)
	}
}

// IsQuota reports whether err is a quota/resource-exhausted failure.
func IsQuota(err error) bool {
	return progress.IsCode(MapError("", err), progress.CodeQuotaExhausted)
}

// IsRetryable reports whether a transaction attempt may be retried.
func IsRetryable(err error) bool {
	return progress.IsCode(MapError("", err), progress.CodeConflict)
}
