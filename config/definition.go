// Package config holds the pipeline definition read from pipeline.yaml and
// the runner's own settings file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StageKind enumerates what a stage does. The kind decides which action
// runs the stage and which credential scope it is handed.
type StageKind string

const (
	KindBuild                StageKind = "build"
	KindPush                 StageKind = "push"
	KindConfigureCredentials StageKind = "configure-credentials"
	KindDeploy               StageKind = "deploy"
	KindVerify               StageKind = "verify"
)

// KnownKinds lists every stage kind the engine can execute.
var KnownKinds = []StageKind{
	KindBuild, KindPush, KindConfigureCredentials, KindDeploy, KindVerify,
}

// Definition is a parsed pipeline.yaml. It is immutable for the duration
// of a run; the controller owns it once Run is called.
type Definition struct {
	Version int         `yaml:"version"`
	Name    string      `yaml:"name"`
	Image   ImageSpec   `yaml:"image"`
	Target  TargetSpec  `yaml:"target"`
	Rollout RolloutSpec `yaml:"rollout,omitempty"`
	Stages  []StageSpec `yaml:"stages"`
}

// ImageSpec describes the image a run builds and pushes.
type ImageSpec struct {
	Repository string            `yaml:"repository"`
	Context    string            `yaml:"context,omitempty"`
	Dockerfile string            `yaml:"dockerfile,omitempty"`
	Platform   string            `yaml:"platform,omitempty"`
	NoCache    bool              `yaml:"no_cache,omitempty"`
	BuildArgs  map[string]string `yaml:"build_args,omitempty"`
	// Tag pins the immutable tag. When empty the short commit hash of the
	// build context is used.
	Tag string `yaml:"tag,omitempty"`
}

// TargetSpec describes where a run deploys.
type TargetSpec struct {
	// Kind is "remote" for a real cluster or "local" for a no-op target
	// that skips the apply.
	Kind      string       `yaml:"kind"`
	Context   string       `yaml:"context,omitempty"`
	Namespace string       `yaml:"namespace,omitempty"`
	Manifests ManifestSpec `yaml:"manifests,omitempty"`
}

// ManifestSpec names the manifest files the deploy stage applies.
type ManifestSpec struct {
	Workload string `yaml:"workload,omitempty"`
	Service  string `yaml:"service,omitempty"`
}

// RolloutSpec tunes the rollout watcher.
type RolloutSpec struct {
	Interval Duration `yaml:"interval,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// StageSpec is one entry of the stages list.
type StageSpec struct {
	Name string    `yaml:"name"`
	Kind StageKind `yaml:"kind"`
	// Run is a shell command for verify stages; other kinds ignore it.
	Run       string   `yaml:"run,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Duration wraps time.Duration so definitions can say "30s" or "3m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults applied to fields a definition leaves empty.
const (
	DefaultContext    = "."
	DefaultDockerfile = "Dockerfile"
	DefaultTargetKind = "remote"

	DefaultRolloutInterval = 5 * time.Second
	DefaultRolloutTimeout  = 3 * time.Minute
)

// ParseDefinition parses raw YAML bytes into a Definition and checks
// required fields. Semantic validation (stage names, kinds, dependencies)
// lives in the validate package.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}

	if def.Name == "" {
		return nil, fmt.Errorf("pipeline definition: name is required")
	}
	if def.Image.Repository == "" {
		return nil, fmt.Errorf("pipeline definition: image.repository is required")
	}
	if len(def.Stages) == 0 {
		return nil, fmt.Errorf("pipeline definition: at least one stage is required")
	}

	if def.Version == 0 {
		def.Version = 1
	}
	if def.Image.Context == "" {
		def.Image.Context = DefaultContext
	}
	if def.Image.Dockerfile == "" {
		def.Image.Dockerfile = DefaultDockerfile
	}
	if def.Target.Kind == "" {
		def.Target.Kind = DefaultTargetKind
	}
	if def.Rollout.Interval == 0 {
		def.Rollout.Interval = Duration(DefaultRolloutInterval)
	}
	if def.Rollout.Timeout == 0 {
		def.Rollout.Timeout = Duration(DefaultRolloutTimeout)
	}

	return &def, nil
}

// LoadDefinition reads and parses a pipeline definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// Stage returns the stage spec with the given name, or nil.
func (d *Definition) Stage(name string) *StageSpec {
	for i := range d.Stages {
		if d.Stages[i].Name == name {
			return &d.Stages[i]
		}
	}
	return nil
}

// HasKind reports whether any stage has the given kind.
func (d *Definition) HasKind(kind StageKind) bool {
	for _, s := range d.Stages {
		if s.Kind == kind {
			return true
		}
	}
	return false
}
