// Package kube talks to the target cluster through the kubectl CLI and
// watches deployments converge after an apply.
package kube

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/slipway-io/slipway/runner"
)

// Kubectl runs kubectl against one kubeconfig. The kubeconfig path is
// passed explicitly on every invocation so nothing leaks into the ambient
// environment of the process.
type Kubectl struct {
	runner     runner.CommandRunner
	kubeconfig string
}

// NewKubectl creates a client. kubeconfigPath may be empty, in which case
// kubectl's own resolution order applies.
func NewKubectl(r runner.CommandRunner, kubeconfigPath string) *Kubectl {
	return &Kubectl{runner: r, kubeconfig: kubeconfigPath}
}

func (k *Kubectl) args(rest ...string) []string {
	if k.kubeconfig == "" {
		return rest
	}
	return append([]string{"--kubeconfig", k.kubeconfig}, rest...)
}

// CheckInstalled verifies the kubectl executable is on PATH before the
// deploy stage shells out to it.
func CheckInstalled() error {
	if _, err := exec.LookPath("kubectl"); err != nil {
		return fmt.Errorf("kubectl executable not found in PATH: %w", err)
	}
	return nil
}

// Version returns the kubectl client version string.
func (k *Kubectl) Version(ctx context.Context) (string, error) {
	out, err := k.runner.Run(ctx, "kubectl", k.args("version", "--client", "--output", "yaml")...)
	if err != nil {
		return "", fmt.Errorf("probing kubectl version: %s: %w", strings.TrimSpace(out), err)
	}
	return strings.TrimSpace(out), nil
}

// UseContext switches the active kube context.
func (k *Kubectl) UseContext(ctx context.Context, name string) (string, error) {
	out, err := k.runner.Run(ctx, "kubectl", k.args("config", "use-context", name)...)
	if err != nil {
		return out, fmt.Errorf("switching kube context to %s: %s: %w", name, strings.TrimSpace(out), err)
	}
	return out, nil
}

// Apply applies one manifest file.
func (k *Kubectl) Apply(ctx context.Context, manifestPath, namespace string) (string, error) {
	rest := []string{"apply", "-f", manifestPath}
	if namespace != "" {
		rest = append(rest, "-n", namespace)
	}
	out, err := k.runner.Run(ctx, "kubectl", k.args(rest...)...)
	if err != nil {
		return out, fmt.Errorf("applying %s: %s: %w", manifestPath, strings.TrimSpace(out), err)
	}
	return out, nil
}

// DeploymentStatus is the slice of deployment state the watcher needs.
type DeploymentStatus struct {
	Desired int
	Ready   int
}

// Deployment fetches a deployment and extracts desired and ready replica
// counts from its JSON representation.
func (k *Kubectl) Deployment(ctx context.Context, name, namespace string) (*DeploymentStatus, error) {
	rest := []string{"get", "deployment", name, "-o", "json"}
	if namespace != "" {
		rest = append(rest, "-n", namespace)
	}
	out, err := k.runner.Run(ctx, "kubectl", k.args(rest...)...)
	if err != nil {
		return nil, fmt.Errorf("getting deployment %s: %s: %w", name, strings.TrimSpace(out), err)
	}

	var obj unstructured.Unstructured
	if err := obj.UnmarshalJSON([]byte(out)); err != nil {
		return nil, fmt.Errorf("parsing deployment %s: %w", name, err)
	}

	desired, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas")
	if err != nil {
		return nil, fmt.Errorf("reading spec.replicas of %s: %w", name, err)
	}
	if !found {
		desired = 1
	}
	ready, _, err := unstructured.NestedInt64(obj.Object, "status", "readyReplicas")
	if err != nil {
		return nil, fmt.Errorf("reading status.readyReplicas of %s: %w", name, err)
	}

	return &DeploymentStatus{Desired: int(desired), Ready: int(ready)}, nil
}

// DeploymentObserver adapts Deployment lookups to the watcher's Observer.
type DeploymentObserver struct {
	Client    *Kubectl
	Name      string
	Namespace string
}

func (o DeploymentObserver) ObserveReady(ctx context.Context) (int, error) {
	st, err := o.Client.Deployment(ctx, o.Name, o.Namespace)
	if err != nil {
		return -1, err
	}
	return st.Ready, nil
}
