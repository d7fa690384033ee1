package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/pipeline"
)

func failedRun() *pipeline.RunResult {
	started := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return &pipeline.RunResult{
		ID:          "20250314-092653-orders-api-ab12",
		Pipeline:    "orders-api",
		Status:      pipeline.StatusFailed,
		FailedStage: "deploy",
		ErrorKind:   pipeline.KindTimeout,
		Error:       "timeout error in stage deploy: rollout did not converge",
		Image:       "acme/orders-api:abc1234",
		Stages: []*pipeline.StageResult{
			{Stage: "build", Kind: config.KindBuild, Status: pipeline.StatusSucceeded,
				StartedAt: started, FinishedAt: started.Add(3 * time.Second)},
			{Stage: "deploy", Kind: config.KindDeploy, Status: pipeline.StatusFailed,
				StartedAt: started, FinishedAt: started.Add(time.Minute),
				Error: "rollout did not converge"},
			{Stage: "verify", Kind: config.KindVerify, Status: pipeline.StatusSkipped,
				Error: "stage deploy failed"},
		},
		Rollout: &kube.RolloutOutcome{
			Phase: kube.PhaseTimedOut,
			State: kube.RolloutState{Desired: 3, Ready: 1},
		},
	}
}

func TestRenderRun_Failed(t *testing.T) {
	out := RenderRun(failedRun())

	for _, want := range []string{
		"orders-api",
		"20250314-092653-orders-api-ab12",
		"acme/orders-api:abc1234",
		"build",
		"rollout did not converge",
		"stage deploy failed",
		"rollout timed-out  1/3 ready",
		"run failed (timeout error in stage deploy)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRun_Succeeded(t *testing.T) {
	res := failedRun()
	res.Status = pipeline.StatusSucceeded
	res.FailedStage = ""
	res.Error = ""

	out := RenderRun(res)
	if !strings.Contains(out, "run succeeded") {
		t.Errorf("output missing success line:\n%s", out)
	}
}

func TestRenderRunList(t *testing.T) {
	out := RenderRunList([]*pipeline.RunResult{failedRun()})
	if !strings.Contains(out, "20250314-092653-orders-api-ab12") {
		t.Errorf("list missing run ID:\n%s", out)
	}

	empty := RenderRunList(nil)
	if !strings.Contains(empty, "no runs recorded") {
		t.Errorf("empty list = %q", empty)
	}
}
