package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

func TestStatusFor(t *testing.T) {
	cases := map[progress.ErrorCode]int{
		progress.CodeValidation:     http.StatusBadRequest,
		progress.CodeNotFound:       http.StatusNotFound,
		progress.CodeConflict:       http.StatusConflict,
		progress.CodeQuotaExhausted: http.StatusTooManyRequests,
		progress.CodeTransient:      http.StatusServiceUnavailable,
		progress.CodeMalformed:      http.StatusUnprocessableEntity,
		progress.CodeInternal:       http.StatusInternalServerError,
		"":                          http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Fatalf("StatusFor(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestFromProgress(t *testing.T) {
	err := FromProgress(progress.Validation("op", "bad %s", "input"))
	if err.Status != http.StatusBadRequest || err.Code != "validation" {
		t.Fatalf("unexpected api error %+v", err)
	}
	plain := FromProgress(errors.New("boom"))
	if plain.Status != http.StatusInternalServerError || plain.Code != "internal" {
		t.Fatalf("unexpected api error for plain error %+v", plain)
	}
	if FromProgress(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
