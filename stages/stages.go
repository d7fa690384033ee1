// Package stages binds stage kinds to the actions that execute them. The
// controller asks the Set for an action per stage; each action reads what
// it needs from the run context and leaves its results there for later
// stages.
package stages

import (
	"errors"
	"fmt"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/container"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/logging"
	"github.com/slipway-io/slipway/pipeline"
	"github.com/slipway-io/slipway/runner"
)

// Set dispatches the built-in stage kinds.
type Set struct {
	// BuilderName pins one container tool; empty auto-detects in order
	// docker, podman, buildah.
	BuilderName string
	// Builder bypasses tool lookup entirely. Tests inject fakes here.
	Builder container.Builder
	// Runner executes kubectl and verify commands.
	Runner runner.CommandRunner
	// RegistryURL, when set, is probed before pushes.
	RegistryURL string

	Log logging.Logger
}

// NewSet wires the default action set.
func NewSet(builderName string, r runner.CommandRunner, log logging.Logger) *Set {
	return &Set{BuilderName: builderName, Runner: r, Log: log}
}

// Action returns the action for a stage. Unknown kinds are a definition
// defect.
func (s *Set) Action(spec config.StageSpec) (pipeline.Action, error) {
	switch spec.Kind {
	case config.KindBuild:
		return s.buildAction(spec), nil
	case config.KindPush:
		return s.pushAction(spec), nil
	case config.KindConfigureCredentials:
		return s.credentialsAction(spec), nil
	case config.KindDeploy:
		return s.deployAction(spec), nil
	case config.KindVerify:
		return s.verifyAction(spec), nil
	default:
		return nil, fmt.Errorf("no action for stage kind %q", spec.Kind)
	}
}

// builder picks the container tool for a run. Logins made through it are
// scoped to the run directory, so they vanish with the run.
func (s *Set) builder(rc *pipeline.RunContext) (container.Builder, error) {
	if s.Builder != nil {
		return s.Builder, nil
	}
	if s.BuilderName != "" {
		b := container.Get(s.BuilderName, rc.Dir())
		if b == nil {
			return nil, fmt.Errorf("unknown container builder %q", s.BuilderName)
		}
		if !b.Available() {
			return nil, fmt.Errorf("container builder %q is not available on this host", s.BuilderName)
		}
		return b, nil
	}
	b := container.Detect(rc.Dir())
	if b == nil {
		return nil, errors.New("no container builder available (tried docker, podman, buildah)")
	}
	return b, nil
}

// targetNamespace resolves which namespace kubectl calls use: the manifest
// wins over the target default, matching what the apiserver would do.
func targetNamespace(t config.TargetSpec, w *kube.Workload) string {
	if w != nil && w.Namespace != "" {
		return w.Namespace
	}
	return t.Namespace
}
