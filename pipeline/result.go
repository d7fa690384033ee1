package pipeline

import (
	"time"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/kube"
)

// Status of a stage or run, moving pending → running → succeeded, failed,
// or skipped.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether a status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// ExitCodeUnknown marks stages that never produced an exit indication,
// e.g. skipped stages or failures before the external tool started.
const ExitCodeUnknown = -1

// StageResult records one stage's execution. Once the status is terminal
// the result is sealed: later mutation attempts are dropped.
type StageResult struct {
	Stage      string           `json:"stage"`
	Kind       config.StageKind `json:"kind"`
	Status     Status           `json:"status"`
	StartedAt  time.Time        `json:"started_at,omitzero"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
	// Output is the stage's captured output, redacted before storage.
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func newStageResult(name string, kind config.StageKind) *StageResult {
	return &StageResult{Stage: name, Kind: kind, Status: StatusPending, ExitCode: ExitCodeUnknown}
}

func (r *StageResult) markRunning() {
	if r.Status.Terminal() {
		return
	}
	r.Status = StatusRunning
	r.StartedAt = time.Now().UTC()
}

func (r *StageResult) finish(status Status, output, errMsg string, exitCode int) {
	if r.Status.Terminal() {
		return
	}
	r.Status = status
	r.Output = output
	r.Error = errMsg
	r.ExitCode = exitCode
	r.FinishedAt = time.Now().UTC()
}

func (r *StageResult) markSkipped(reason string) {
	if r.Status.Terminal() {
		return
	}
	r.Status = StatusSkipped
	r.Error = reason
	r.FinishedAt = time.Now().UTC()
}

// Duration returns how long the stage ran, or zero if it never started.
func (r *StageResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunResult is the engine's external contract: everything a caller learns
// about a run. It is rendered by the CLI, persisted by the store, and
// served by the HTTP API.
type RunResult struct {
	ID          string         `json:"id"`
	Pipeline    string         `json:"pipeline"`
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at,omitzero"`
	FailedStage string         `json:"failed_stage,omitempty"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	Image       string         `json:"image,omitempty"`
	Stages      []*StageResult `json:"stages"`

	// Rollout is the watcher's terminal report for runs that deployed.
	Rollout *kube.RolloutOutcome `json:"rollout,omitempty"`
}

// StageResult returns the named stage's result, or nil.
func (r *RunResult) StageResult(name string) *StageResult {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	return nil
}

// Failed reports whether the run finished unsuccessfully.
func (r *RunResult) Failed() bool { return r.Status == StatusFailed }
