package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := NewError(KindExecution, "build", errors.New("exit status 1"))
	want := "execution error in stage build: exit status 1"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	err = NewError(KindConfiguration, "", errors.New("duplicate stage name"))
	want = "configuration error: duplicate stage name"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewError(KindExecution, "build", inner)
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the wrapped error")
	}

	wrapped := fmt.Errorf("running pipeline: %w", err)
	var pe *Error
	if !errors.As(wrapped, &pe) {
		t.Fatal("expected errors.As to find *Error through wrapping")
	}
	if pe.Kind != KindExecution || pe.Stage != "build" {
		t.Errorf("got kind=%s stage=%s, want execution/build", pe.Kind, pe.Stage)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"timeout", NewError(KindTimeout, "deploy", errors.New("gave up")), KindTimeout},
		{"cancellation", NewError(KindCancellation, "", errors.New("ctx done")), KindCancellation},
		{"wrapped", fmt.Errorf("outer: %w", NewError(KindConfiguration, "", errors.New("bad"))), KindConfiguration},
		{"plain error defaults to execution", errors.New("boom"), KindExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKindPredicates(t *testing.T) {
	cfg := NewError(KindConfiguration, "", errors.New("bad"))
	if !IsConfiguration(cfg) || IsExecution(cfg) || IsTimeout(cfg) || IsCancellation(cfg) {
		t.Error("predicates disagree for configuration error")
	}
	to := NewError(KindTimeout, "deploy", errors.New("gave up"))
	if !IsTimeout(to) || IsConfiguration(to) {
		t.Error("predicates disagree for timeout error")
	}
	if IsExecution(errors.New("plain")) {
		t.Error("plain errors must not satisfy IsExecution")
	}
}
