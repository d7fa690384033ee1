package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/pipeline"
)

// deployAction applies the target manifests and watches the rollout
// converge. A local target applies nothing, but still runs the watcher
// with zero desired replicas so every deploy ends with a rollout report.
func (s *Set) deployAction(spec config.StageSpec) pipeline.ActionFunc {
	return func(ctx context.Context, rc *pipeline.RunContext) (string, error) {
		t := rc.Def.Target
		watcher := kube.NewWatcher(rc.Def.Rollout.Interval.Std(), rc.Def.Rollout.Timeout.Std(), s.Log)

		if t.Kind == "local" {
			outcome := watcher.Watch(ctx, 0, kube.StaticObserver{})
			rc.SetRollout(&outcome)
			return "local target: nothing applied, nothing to roll out\n", nil
		}

		workload, err := kube.InspectWorkload(t.Manifests.Workload)
		if err != nil {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name, err)
		}
		img := rc.ImageRef()
		if workload.Image != img.String() {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
				fmt.Errorf("manifest %s deploys image %q but this run built %q",
					t.Manifests.Workload, workload.Image, img.String()))
		}
		rc.SetWorkload(workload)

		kubeconfig := rc.KubeconfigPath()
		if kubeconfig == "" {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
				errors.New("no kubeconfig materialized; run a configure-credentials stage before deploy"))
		}
		client := kube.NewKubectl(s.Runner, kubeconfig)
		ns := targetNamespace(t, workload)

		s.Log.Info("applying workload", map[string]any{
			"manifest": t.Manifests.Workload, "deployment": workload.Name, "namespace": ns,
		})
		out, err := client.Apply(ctx, t.Manifests.Workload, ns)
		if err != nil {
			return out, err
		}

		if t.Manifests.Service != "" {
			isSvc, err := kube.IsService(t.Manifests.Service)
			if err != nil {
				return out, pipeline.NewError(pipeline.KindConfiguration, spec.Name, err)
			}
			if !isSvc {
				return out, pipeline.NewError(pipeline.KindConfiguration, spec.Name,
					fmt.Errorf("manifest %s is not a Service", t.Manifests.Service))
			}
			svcOut, err := client.Apply(ctx, t.Manifests.Service, ns)
			out += svcOut
			if err != nil {
				return out, err
			}
		}

		obs := kube.DeploymentObserver{Client: client, Name: workload.Name, Namespace: ns}
		outcome := watcher.Watch(ctx, workload.Replicas, obs)
		rc.SetRollout(&outcome)

		switch outcome.Phase {
		case kube.PhaseSucceeded:
			out += fmt.Sprintf("rollout converged: %d/%d ready after %d observations\n",
				outcome.State.Ready, outcome.State.Desired, outcome.Observations)
			return out, nil
		case kube.PhaseTimedOut:
			return out, pipeline.NewError(pipeline.KindTimeout, spec.Name,
				fmt.Errorf("rollout of %s did not converge within %s (%d/%d ready)",
					workload.Name, rc.Def.Rollout.Timeout.Std(), outcome.State.Ready, outcome.State.Desired))
		default:
			return out, pipeline.NewError(pipeline.KindCancellation, spec.Name, outcome.Err)
		}
	}
}
