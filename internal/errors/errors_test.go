package errors

import (
	"errors"
	"testing"
)

func TestErrorUnwrapAndFormat(t *testing.T) {
	underlying := errors.New("disk full")
	err := New(IndexLocked, "get_writer", underlying).
		WithFile("/repo/main.go").
		WithWorkspace("abc12345")

	if !errors.Is(err, underlying) {
		t.Fatalf("expected Is() to unwrap to underlying error")
	}

	want := "index_locked: get_writer failed for /repo/main.go in workspace abc12345: disk full"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{IndexLocked, true},
		{TransientIO, true},
		{ResourceExhausted, true},
		{NotFound, false},
		{SchemaMismatch, false},
		{StuckLock, false},
	}
	for _, c := range cases {
		e := New(c.kind, "op", errors.New("x"))
		if got := e.Retryable(); got != c.want {
			t.Errorf("Kind %s: Retryable() = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestWithSuggestion(t *testing.T) {
	e := New(NotFound, "lookup", errors.New("no such workspace")).
		WithSuggestion("Index the workspace containing this file first")
	if e.Suggestion == "" {
		t.Fatalf("expected a suggestion to be attached")
	}
}

func TestMultiErrorFiltersNil(t *testing.T) {
	err1 := errors.New("first")
	merged := NewMultiError([]error{nil, err1, nil})
	if merged == nil {
		t.Fatalf("expected non-nil MultiError")
	}
	if len(merged.Errors) != 1 {
		t.Fatalf("expected 1 error after filtering nils, got %d", len(merged.Errors))
	}

	if NewMultiError([]error{nil, nil}) != nil {
		t.Fatalf("expected nil MultiError when every error is nil")
	}
}

func TestMultiErrorMessage(t *testing.T) {
	merged := NewMultiError([]error{errors.New("a"), errors.New("b")})
	if merged.Error() == "" {
		t.Fatalf("expected a non-empty aggregate message")
	}
}
