package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/container"
	"github.com/slipway-io/slipway/credentials"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/logging"
	"github.com/slipway-io/slipway/util"
)

// RunContext carries everything stages share within one run: the resolved
// image reference, the credential handle of the current stage, a scratch
// directory wiped at run end, and state later stages read from earlier
// ones. It is created when a run starts and closed when it ends.
type RunContext struct {
	ID  string
	Def *config.Definition

	Resolver *credentials.Resolver
	Redactor *credentials.Redactor
	Log      logging.Logger

	dir string

	mu             sync.Mutex
	imageRef       container.ImageRef
	kubeconfigPath string
	workload       *kube.Workload
	rollout        *kube.RolloutOutcome
	credential     *credentials.ScopedCredential
	warnings       []string
}

// NewRunContext creates the context for one run, including its private
// scratch directory. Callers must Close it on every exit path.
func NewRunContext(id string, def *config.Definition, resolver *credentials.Resolver, redactor *credentials.Redactor, log logging.Logger) (*RunContext, error) {
	dir, err := os.MkdirTemp("", "slipway-run-*")
	if err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	return &RunContext{
		ID:       id,
		Def:      def,
		Resolver: resolver,
		Redactor: redactor,
		Log:      log,
		dir:      dir,
	}, nil
}

// NewRunID mints a run identifier: UTC timestamp, slugged pipeline name,
// and a random suffix against same-second collisions. IDs sort
// chronologically.
func NewRunID(pipeline string) string {
	suffix := make([]byte, 2)
	rand.Read(suffix) //nolint:errcheck
	return fmt.Sprintf("%s-%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		util.Slugify(pipeline),
		hex.EncodeToString(suffix))
}

// Dir returns the run's scratch directory. It exists until Close and is
// only readable by the current user.
func (rc *RunContext) Dir() string { return rc.dir }

// SetImageRef records the resolved immutable image reference.
func (rc *RunContext) SetImageRef(ref container.ImageRef) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.imageRef = ref
}

// ImageRef returns the resolved immutable image reference for this run.
func (rc *RunContext) ImageRef() container.ImageRef {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.imageRef
}

// SetKubeconfigPath records where the configure-credentials stage
// materialized the kubeconfig.
func (rc *RunContext) SetKubeconfigPath(path string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.kubeconfigPath = path
}

// KubeconfigPath returns the materialized kubeconfig path, or empty if the
// configure-credentials stage has not run.
func (rc *RunContext) KubeconfigPath() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.kubeconfigPath
}

// SetWorkload records the inspected workload manifest for later stages.
func (rc *RunContext) SetWorkload(w *kube.Workload) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.workload = w
}

// Workload returns the inspected workload manifest, or nil.
func (rc *RunContext) Workload() *kube.Workload {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.workload
}

// SetRollout records the watcher's terminal report.
func (rc *RunContext) SetRollout(o *kube.RolloutOutcome) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.rollout = o
}

// Rollout returns the watcher's terminal report, or nil.
func (rc *RunContext) Rollout() *kube.RolloutOutcome {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.rollout
}

// setCredential installs the current stage's credential handle. The
// controller calls this before a stage runs and clears it after.
func (rc *RunContext) setCredential(c *credentials.ScopedCredential) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.credential = c
}

// Credential returns the current stage's credential handle, or nil for
// stages whose kind needs no scope.
func (rc *RunContext) Credential() *credentials.ScopedCredential {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.credential
}

// AddWarning records a non-fatal observation for the final report.
func (rc *RunContext) AddWarning(msg string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.warnings = append(rc.warnings, msg)
}

// Warnings returns accumulated warnings.
func (rc *RunContext) Warnings() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.warnings...)
}

// Close wipes the scratch directory, taking any materialized kubeconfig
// with it, and reports leaked credential handles.
func (rc *RunContext) Close() {
	if n := rc.Resolver.Outstanding(); n > 0 {
		rc.Log.Warn("credential handles left unreleased at run end", map[string]any{
			"run": rc.ID, "outstanding": n,
		})
	}
	if err := os.RemoveAll(rc.dir); err != nil {
		rc.Log.Warn("removing run directory", map[string]any{
			"run": rc.ID, "error": err.Error(),
		})
	}
}
