package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/pipeline"
)

// credentialsAction materializes the cluster credential as a kubeconfig
// file inside the run directory, readable only by the current user. The
// file disappears when the run context closes. The kubeconfig bytes are
// never written to output or logs.
func (s *Set) credentialsAction(spec config.StageSpec) pipeline.ActionFunc {
	return func(ctx context.Context, rc *pipeline.RunContext) (string, error) {
		cred := rc.Credential()
		if cred == nil {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
				errors.New("configure-credentials stage resolved no cluster credential"))
		}
		material := cred.Kubeconfig()
		if len(material) == 0 {
			return "", pipeline.NewError(pipeline.KindConfiguration, spec.Name,
				errors.New("cluster credential holds no kubeconfig material"))
		}

		path := filepath.Join(rc.Dir(), "kubeconfig")
		if err := os.WriteFile(path, material, 0o600); err != nil {
			return "", fmt.Errorf("writing kubeconfig: %w", err)
		}
		rc.SetKubeconfigPath(path)
		s.Log.Info("kubeconfig materialized", map[string]any{
			"run": rc.ID, "bytes": len(material),
		})

		out := fmt.Sprintf("kubeconfig materialized in run directory (%d bytes)\n", len(material))

		if kctx := rc.Def.Target.Context; kctx != "" {
			swOut, err := kube.NewKubectl(s.Runner, path).UseContext(ctx, kctx)
			out += swOut
			if err != nil {
				return out, err
			}
			s.Log.Info("kube context selected", map[string]any{"context": kctx})
		}

		return out, nil
	}
}
