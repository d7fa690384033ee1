package kube

import (
	"fmt"
	"os"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"
)

// Workload is the slice of a workload manifest the engine cares about:
// identity for the watcher and the image field that must match the run's
// resolved reference.
type Workload struct {
	Kind      string
	Name      string
	Namespace string
	Image     string
	Replicas  int
}

// InspectWorkload parses a workload manifest file. Only Deployment
// manifests are accepted; replicas defaults to 1 when unset, matching the
// apiserver default.
func InspectWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("converting manifest %s to JSON: %w", path, err)
	}
	var obj unstructured.Unstructured
	if err := obj.UnmarshalJSON(jsonData); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if obj.GetKind() != "Deployment" {
		return nil, fmt.Errorf("manifest %s is a %s, want Deployment", path, obj.GetKind())
	}

	w := &Workload{
		Kind:      obj.GetKind(),
		Name:      obj.GetName(),
		Namespace: obj.GetNamespace(),
		Replicas:  1,
	}
	if w.Name == "" {
		return nil, fmt.Errorf("manifest %s has no metadata.name", path)
	}

	if replicas, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas"); err == nil && found {
		if replicas < 0 {
			return nil, fmt.Errorf("manifest %s declares negative replicas %d", path, replicas)
		}
		w.Replicas = int(replicas)
	}

	containers, found, err := unstructured.NestedSlice(obj.Object, "spec", "template", "spec", "containers")
	if err != nil || !found || len(containers) == 0 {
		return nil, fmt.Errorf("manifest %s has no containers", path)
	}
	first, ok := containers[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("manifest %s has a malformed container entry", path)
	}
	if img, ok := first["image"].(string); ok {
		w.Image = img
	}
	if w.Image == "" {
		return nil, fmt.Errorf("manifest %s container has no image", path)
	}

	return w, nil
}

// IsService reports whether the manifest file declares a Service. The
// deploy stage applies service manifests without further inspection.
func IsService(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return false, fmt.Errorf("converting manifest %s to JSON: %w", path, err)
	}
	var obj unstructured.Unstructured
	if err := obj.UnmarshalJSON(jsonData); err != nil {
		return false, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return obj.GetKind() == "Service", nil
}
