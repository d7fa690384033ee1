package pipeline

import (
	"context"
	"errors"
	"os/exec"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/logging"
)

// Action is the work of one stage. Implementations return whatever output
// they captured from external tools; the executor owns status transitions,
// timestamps, redaction, and sealing of the result.
type Action interface {
	Run(ctx context.Context, rc *RunContext) (output string, err error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, rc *RunContext) (string, error)

func (f ActionFunc) Run(ctx context.Context, rc *RunContext) (string, error) {
	return f(ctx, rc)
}

// Dispatcher yields the action that executes a stage. Unknown kinds are a
// definition defect and must error.
type Dispatcher interface {
	Action(spec config.StageSpec) (Action, error)
}

// Executor runs single stages and records their outcome. It never retries:
// a failed stage is reported, not re-run.
type Executor struct {
	Log logging.Logger
}

// Execute runs the stage's action and returns its sealed result along
// with the action's raw error for classification. Captured output and
// error text pass through the run's redactor before they are stored, so
// secret values never reach results or logs.
func (e *Executor) Execute(ctx context.Context, spec config.StageSpec, action Action, rc *RunContext) (*StageResult, error) {
	res := newStageResult(spec.Name, spec.Kind)
	res.markRunning()
	e.Log.Info("stage started", map[string]any{
		"run": rc.ID, "stage": spec.Name, "kind": string(spec.Kind),
	})

	out, err := action.Run(ctx, rc)
	redacted := rc.Redactor.Redact(out)
	if err != nil {
		msg := rc.Redactor.Redact(causeMessage(err))
		res.finish(StatusFailed, redacted, msg, exitCodeFrom(err))
		e.Log.Error("stage failed", map[string]any{
			"run": rc.ID, "stage": spec.Name, "error": msg, "duration": res.Duration().String(),
		})
		return res, err
	}

	res.finish(StatusSucceeded, redacted, "", 0)
	e.Log.Info("stage succeeded", map[string]any{
		"run": rc.ID, "stage": spec.Name, "duration": res.Duration().String(),
	})
	return res, nil
}

// exitCodeFrom digs a process exit code out of err. Failures that are not
// process exits report ExitCodeUnknown.
func exitCodeFrom(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return ExitCodeUnknown
}

// causeMessage strips the classification prefix from errors the action
// already classified; the stage result names its own stage, repeating it
// in the message helps nobody.
func causeMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}
