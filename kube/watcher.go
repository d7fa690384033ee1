package kube

import (
	"context"
	"time"

	"github.com/slipway-io/slipway/logging"
)

// Phase is the terminal outcome of a rollout watch.
type Phase string

const (
	PhaseSucceeded Phase = "succeeded"
	PhaseTimedOut  Phase = "timed-out"
	PhaseAborted   Phase = "aborted"
)

// RolloutState is the last snapshot the watcher took: how many replicas
// the rollout wants, how many reported ready, and when that was observed.
type RolloutState struct {
	Desired   int       `json:"desired"`
	Ready     int       `json:"ready"`
	LastCheck time.Time `json:"last_check"`
}

// RolloutOutcome is the watcher's terminal report. State carries the last
// valid observation even when the watch timed out.
type RolloutOutcome struct {
	Phase        Phase        `json:"phase"`
	State        RolloutState `json:"state"`
	Observations int          `json:"observations"`
	Err          error        `json:"-"`
}

// Observer yields one readiness observation. A negative count or an error
// marks the observation failed; failed observations never advance the
// rollout state.
type Observer interface {
	ObserveReady(ctx context.Context) (int, error)
}

// StaticObserver always reports the same ready count. Used for no-op
// targets and tests.
type StaticObserver struct{ Ready int }

func (o StaticObserver) ObserveReady(context.Context) (int, error) { return o.Ready, nil }

// confirmations a rollout needs before the watcher calls it converged. A
// single observation can race a rolling update that is about to take
// replicas down again.
const requiredConfirmations = 2

// Watcher polls an Observer until the rollout converges, the timeout
// elapses, or the context is cancelled.
type Watcher struct {
	Interval time.Duration
	Timeout  time.Duration
	Log      logging.Logger
}

// NewWatcher creates a watcher with the given poll interval and overall
// timeout.
func NewWatcher(interval, timeout time.Duration, log logging.Logger) *Watcher {
	return &Watcher{Interval: interval, Timeout: timeout, Log: log}
}

// Watch polls obs until `desired` replicas report ready on
// requiredConfirmations consecutive observations. A desired count of zero
// succeeds immediately without polling. On timeout the outcome carries the
// last valid state; on cancellation it reports aborted right away.
func (w *Watcher) Watch(ctx context.Context, desired int, obs Observer) RolloutOutcome {
	now := time.Now()
	state := RolloutState{Desired: desired, LastCheck: now}

	if desired == 0 {
		w.Log.Info("rollout has no replicas to wait for", map[string]any{"desired": 0})
		return RolloutOutcome{Phase: PhaseSucceeded, State: state}
	}

	deadline := now.Add(w.Timeout)
	outcome := RolloutOutcome{State: state}
	confirmed := 0

	for {
		if ctx.Err() != nil {
			outcome.Phase = PhaseAborted
			outcome.Err = ctx.Err()
			return outcome
		}

		ready, err := obs.ObserveReady(ctx)
		outcome.Observations++
		switch {
		case err != nil || ready < 0:
			// A failed observation tells us nothing about the rollout;
			// it breaks the confirmation streak but leaves state as-is.
			confirmed = 0
			if ctx.Err() != nil {
				outcome.Phase = PhaseAborted
				outcome.Err = ctx.Err()
				return outcome
			}
			w.Log.Warn("rollout observation failed", map[string]any{
				"error": errString(err), "ready": ready,
			})
		case ready >= desired:
			confirmed++
			outcome.State = RolloutState{Desired: desired, Ready: ready, LastCheck: time.Now()}
			if confirmed >= requiredConfirmations {
				outcome.Phase = PhaseSucceeded
				w.Log.Info("rollout converged", map[string]any{
					"desired": desired, "ready": ready, "observations": outcome.Observations,
				})
				return outcome
			}
		default:
			confirmed = 0
			outcome.State = RolloutState{Desired: desired, Ready: ready, LastCheck: time.Now()}
			w.Log.Debug("rollout progressing", map[string]any{
				"desired": desired, "ready": ready,
			})
		}

		if !time.Now().Before(deadline) {
			outcome.Phase = PhaseTimedOut
			return outcome
		}

		select {
		case <-ctx.Done():
			outcome.Phase = PhaseAborted
			outcome.Err = ctx.Err()
			return outcome
		case <-time.After(w.Interval):
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
