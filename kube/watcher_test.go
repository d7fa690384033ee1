package kube

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slipway-io/slipway/logging"
)

// scriptObserver replays a fixed observation sequence. Entries < 0 are
// returned as observation errors. The last entry repeats once the script
// is exhausted.
type scriptObserver struct {
	seq []int
	i   int
}

func (o *scriptObserver) ObserveReady(context.Context) (int, error) {
	idx := o.i
	if idx >= len(o.seq) {
		idx = len(o.seq) - 1
	} else {
		o.i++
	}
	v := o.seq[idx]
	if v < 0 {
		return v, errors.New("observation failed")
	}
	return v, nil
}

func testWatcher(interval, timeout time.Duration) *Watcher {
	return NewWatcher(interval, timeout, logging.NewJSONLogger(&bytes.Buffer{}, false))
}

func TestWatchConvergesAfterConfirmation(t *testing.T) {
	w := testWatcher(time.Millisecond, time.Second)
	obs := &scriptObserver{seq: []int{1, 2, 3, 3}}

	outcome := w.Watch(context.Background(), 3, obs)

	if outcome.Phase != PhaseSucceeded {
		t.Fatalf("Phase = %q, want succeeded", outcome.Phase)
	}
	if outcome.Observations != 4 {
		t.Errorf("Observations = %d, want 4 (success only after the second full reading)", outcome.Observations)
	}
	if outcome.State.Ready != 3 || outcome.State.Desired != 3 {
		t.Errorf("State = %+v, want 3/3", outcome.State)
	}
}

func TestWatchZeroDesiredSucceedsWithoutPolling(t *testing.T) {
	w := testWatcher(time.Hour, time.Hour)
	obs := &scriptObserver{seq: []int{0}}

	outcome := w.Watch(context.Background(), 0, obs)

	if outcome.Phase != PhaseSucceeded {
		t.Fatalf("Phase = %q, want succeeded", outcome.Phase)
	}
	if outcome.Observations != 0 {
		t.Errorf("Observations = %d, want 0 for a zero-replica rollout", outcome.Observations)
	}
}

func TestWatchTimesOutWithLastState(t *testing.T) {
	w := testWatcher(5*time.Millisecond, 50*time.Millisecond)
	obs := &scriptObserver{seq: []int{0, 1, 1, 1}}

	start := time.Now()
	outcome := w.Watch(context.Background(), 2, obs)
	elapsed := time.Since(start)

	if outcome.Phase != PhaseTimedOut {
		t.Fatalf("Phase = %q, want timed-out", outcome.Phase)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("watch gave up after %v, before the %v timeout", elapsed, 50*time.Millisecond)
	}
	if outcome.State.Ready != 1 {
		t.Errorf("State.Ready = %d, want last observed 1", outcome.State.Ready)
	}
}

func TestWatchSingleReadingIsNotConvergence(t *testing.T) {
	w := testWatcher(time.Millisecond, time.Second)
	obs := &scriptObserver{seq: []int{1, 0, 1, 1}}

	outcome := w.Watch(context.Background(), 1, obs)

	if outcome.Phase != PhaseSucceeded {
		t.Fatalf("Phase = %q, want succeeded", outcome.Phase)
	}
	// The lone first success is discarded by the dip that follows.
	if outcome.Observations != 4 {
		t.Errorf("Observations = %d, want 4", outcome.Observations)
	}
}

func TestWatchObservationErrorBreaksStreakNotState(t *testing.T) {
	w := testWatcher(time.Millisecond, time.Second)
	obs := &scriptObserver{seq: []int{3, -1, 3, 3}}

	outcome := w.Watch(context.Background(), 3, obs)

	if outcome.Phase != PhaseSucceeded {
		t.Fatalf("Phase = %q, want succeeded", outcome.Phase)
	}
	if outcome.Observations != 4 {
		t.Errorf("Observations = %d, want 4 (error discards the first reading)", outcome.Observations)
	}
}

func TestWatchFailedObservationKeepsState(t *testing.T) {
	w := testWatcher(time.Millisecond, 20*time.Millisecond)
	obs := &scriptObserver{seq: []int{2, -1}}

	outcome := w.Watch(context.Background(), 3, obs)

	if outcome.Phase != PhaseTimedOut {
		t.Fatalf("Phase = %q, want timed-out", outcome.Phase)
	}
	if outcome.State.Ready != 2 {
		t.Errorf("State.Ready = %d, want 2 preserved across failed observations", outcome.State.Ready)
	}
}

func TestWatchAbortsOnCancel(t *testing.T) {
	w := testWatcher(10*time.Millisecond, time.Hour)
	obs := &scriptObserver{seq: []int{0}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := w.Watch(ctx, 2, obs)

	if outcome.Phase != PhaseAborted {
		t.Fatalf("Phase = %q, want aborted", outcome.Phase)
	}
	if outcome.Err == nil {
		t.Error("aborted outcome carries no error")
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the watch promptly")
	}
}

func TestStaticObserver(t *testing.T) {
	w := testWatcher(time.Millisecond, time.Second)

	outcome := w.Watch(context.Background(), 2, StaticObserver{Ready: 2})
	if outcome.Phase != PhaseSucceeded {
		t.Errorf("Phase = %q, want succeeded", outcome.Phase)
	}
}
