package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/pipeline"
)

// verifyAction runs the stage's custom command when one is given.
// Otherwise it re-checks the deployed workload once against the cluster:
// a cheap post-rollout sanity check, not a second watch.
func (s *Set) verifyAction(spec config.StageSpec) pipeline.ActionFunc {
	return func(ctx context.Context, rc *pipeline.RunContext) (string, error) {
		if spec.Run != "" {
			s.Log.Info("running verify command", map[string]any{"stage": spec.Name})
			out, err := s.Runner.Run(ctx, "sh", "-c", spec.Run)
			if err != nil {
				return out, fmt.Errorf("verify command failed: %w", err)
			}
			return out, nil
		}

		// A local target has no cluster to ask; the deploy stage's rollout
		// report is all there is.
		if rc.Def.Target.Kind == "local" {
			if ro := rc.Rollout(); ro != nil {
				return fmt.Sprintf("local target: rollout %s\n", ro.Phase), nil
			}
			return "local target: nothing to verify against a cluster\n", nil
		}

		workload := rc.Workload()
		if workload == nil {
			if rc.Def.Target.Manifests.Workload == "" {
				return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
					errors.New("verify stage needs a run command or a workload manifest to check"))
			}
			var err error
			workload, err = kube.InspectWorkload(rc.Def.Target.Manifests.Workload)
			if err != nil {
				return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name, err)
			}
		}

		kubeconfig := rc.KubeconfigPath()
		if kubeconfig == "" {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
				errors.New("no kubeconfig materialized; run a configure-credentials stage before verify"))
		}
		client := kube.NewKubectl(s.Runner, kubeconfig)
		ns := targetNamespace(rc.Def.Target, workload)
		st, err := client.Deployment(ctx, workload.Name, ns)
		if err != nil {
			return "", err
		}
		if st.Ready < st.Desired {
			return "", fmt.Errorf("deployment %s not converged: %d/%d ready", workload.Name, st.Ready, st.Desired)
		}
		return fmt.Sprintf("deployment %s ready: %d/%d\n", workload.Name, st.Ready, st.Desired), nil
	}
}
