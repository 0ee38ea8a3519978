package cerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(NotFound, "task not found", nil)
	if got, want := err.Error(), "[NotFound] task not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := NewError(Internal, "server error", errors.New("disk full"))
	if got, want := wrapped.Error(), "[Internal] server error: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorUnwrap(t *testing.T) {
	underlying := errors.New("boom")
	err := NewError(Internal, "server error", underlying)
	if !errors.Is(err, underlying) {
		t.Error("expected errors.Is to find the underlying error")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(FailedPrecondition, "task already assigned", nil))
	if !IsCode(err, FailedPrecondition) {
		t.Error("expected IsCode to match through wrapping")
	}
	if IsCode(err, NotFound) {
		t.Error("expected IsCode to reject a different code")
	}
	if IsCode(errors.New("plain"), NotFound) {
		t.Error("expected IsCode to reject a plain error")
	}
}

func TestStackCapturedForErrorLevelOnly(t *testing.T) {
	if err := NewError(Internal, "server error", nil); err.Stack == "" {
		t.Error("expected stack for Internal")
	}
	if err := NewError(NotFound, "task not found", nil); err.Stack != "" {
		t.Error("expected no stack for NotFound")
	}
}

func TestHTTPCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{OK, http.StatusOK},
		{InvalidArgument, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{AlreadyExists, http.StatusConflict},
		{FailedPrecondition, http.StatusPreconditionFailed},
		{Internal, http.StatusInternalServerError},
		{Unauthenticated, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPCode(); got != tt.want {
			t.Errorf("%s.HTTPCode() = %d, want %d", tt.code, got, tt.want)
		}
	}
}
