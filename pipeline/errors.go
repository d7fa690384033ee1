// Package pipeline contains the run engine: definition ordering, the stage
// executor, and the controller that drives a pipeline from first stage to
// final result.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a run failure so callers can tell mistakes in the
// definition or environment apart from failures of the work itself. The
// kinds matter for retry policy: configuration errors will fail identically
// on retry, cancellations were requested and must not be retried blindly.
type ErrorKind string

const (
	// KindConfiguration marks defects in the definition or credential
	// store, detected before any stage runs.
	KindConfiguration ErrorKind = "configuration"
	// KindExecution marks a stage whose work failed.
	KindExecution ErrorKind = "execution"
	// KindTimeout marks a rollout watch that gave up waiting.
	KindTimeout ErrorKind = "timeout"
	// KindCancellation marks a run stopped by its caller.
	KindCancellation ErrorKind = "cancellation"
)

// Error is a classified pipeline failure, optionally tied to a stage.
type Error struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s error in stage %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the stage it occurred in. Stage may
// be empty for run-level failures.
func NewError(kind ErrorKind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the classification from err, or KindExecution when err
// carries none.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindExecution
}

func isKind(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// IsConfiguration reports whether err is a definition or credential defect.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsExecution reports whether err is a stage work failure.
func IsExecution(err error) bool { return isKind(err, KindExecution) }

// IsTimeout reports whether err is a rollout timeout.
func IsTimeout(err error) bool { return isKind(err, KindTimeout) }

// IsCancellation reports whether err is a caller-requested stop.
func IsCancellation(err error) bool { return isKind(err, KindCancellation) }
