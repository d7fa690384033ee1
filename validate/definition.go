package validate

import (
	"fmt"
	"regexp"

	"github.com/slipway-io/slipway/config"
)

var (
	namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

	knownKinds = map[config.StageKind]bool{
		config.KindBuild:                true,
		config.KindPush:                 true,
		config.KindConfigureCredentials: true,
		config.KindDeploy:               true,
		config.KindVerify:               true,
	}
	knownTargetKinds = map[string]bool{"local": true, "remote": true}
)

// ValidationResult holds errors and warnings from definition validation.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Definition checks a pipeline definition for errors and warnings.
func Definition(def *config.Definition) *ValidationResult {
	r := &ValidationResult{}

	if def.Name == "" {
		r.Errors = append(r.Errors, "name is required")
	} else if !namePattern.MatchString(def.Name) {
		r.Errors = append(r.Errors, fmt.Sprintf("name %q must match ^[a-z0-9-]+$", def.Name))
	}

	if def.Image.Repository == "" {
		r.Errors = append(r.Errors, "image.repository is required")
	}

	if def.Target.Kind != "" && !knownTargetKinds[def.Target.Kind] {
		r.Errors = append(r.Errors, fmt.Sprintf("target.kind %q must be one of: local, remote", def.Target.Kind))
	}

	if def.Rollout.Interval.Std() > 0 && def.Rollout.Timeout.Std() > 0 &&
		def.Rollout.Interval.Std() >= def.Rollout.Timeout.Std() {
		r.Warnings = append(r.Warnings, fmt.Sprintf("rollout.interval %s is not below rollout.timeout %s; at most one readiness check will run", def.Rollout.Interval.Std(), def.Rollout.Timeout.Std()))
	}

	if len(def.Stages) == 0 {
		r.Errors = append(r.Errors, "at least one stage is required")
	}

	remoteTarget := def.Target.Kind != "local"

	seen := make(map[string]int, len(def.Stages))
	sawBuild := false
	sawCredentials := false
	for i, s := range def.Stages {
		if s.Name == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: name is required", i))
		} else if !namePattern.MatchString(s.Name) {
			r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: name %q must match ^[a-z0-9-]+$", i, s.Name))
		}
		if prev, dup := seen[s.Name]; dup {
			r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: name %q already used by stages[%d]", i, s.Name, prev))
		} else if s.Name != "" {
			seen[s.Name] = i
		}

		if !knownKinds[s.Kind] {
			r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: unknown kind %q (known: build, push, configure-credentials, deploy, verify)", i, s.Kind))
		}

		for _, dep := range s.DependsOn {
			if dep == s.Name {
				r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: %q depends on itself", i, s.Name))
				continue
			}
			at, ok := seen[dep]
			if !ok || at >= i {
				r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: %q depends on %q, which is not an earlier stage", i, s.Name, dep))
			}
		}

		switch s.Kind {
		case config.KindBuild:
			sawBuild = true
		case config.KindConfigureCredentials:
			sawCredentials = true
		case config.KindPush:
			if !sawBuild {
				r.Warnings = append(r.Warnings, fmt.Sprintf("stages[%d]: push stage %q has no earlier build stage; the image must already exist locally", i, s.Name))
			}
		case config.KindDeploy:
			if remoteTarget {
				if def.Target.Manifests.Workload == "" {
					r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: deploy stage %q requires target.manifests.workload for a remote target", i, s.Name))
				}
				if !sawCredentials {
					r.Errors = append(r.Errors, fmt.Sprintf("stages[%d]: deploy stage %q requires an earlier configure-credentials stage for a remote target", i, s.Name))
				}
			}
		case config.KindVerify:
			if s.Run == "" && remoteTarget && !sawCredentials {
				r.Warnings = append(r.Warnings, fmt.Sprintf("stages[%d]: verify stage %q has no run command and will check the cluster, which needs an earlier configure-credentials stage", i, s.Name))
			}
		}

		if s.Run != "" && s.Kind != config.KindVerify {
			r.Warnings = append(r.Warnings, fmt.Sprintf("stages[%d]: run is ignored for kind %q", i, s.Kind))
		}
	}

	if def.Target.Kind == "local" && sawCredentials {
		r.Warnings = append(r.Warnings, "configure-credentials stage is unnecessary for a local target")
	}

	return r
}
