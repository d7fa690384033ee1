package kube

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const deploymentYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: orders-api
  namespace: prod
spec:
  replicas: 3
  selector:
    matchLabels:
      app: orders-api
  template:
    metadata:
      labels:
        app: orders-api
    spec:
      containers:
        - name: orders-api
          image: acme/orders-api:3e9f1aa
          ports:
            - containerPort: 8080
`

const serviceYAML = `apiVersion: v1
kind: Service
metadata:
  name: orders-api
spec:
  selector:
    app: orders-api
  ports:
    - port: 80
      targetPort: 8080
`

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestInspectWorkload(t *testing.T) {
	path := writeManifest(t, "deploy.yaml", deploymentYAML)

	w, err := InspectWorkload(path)
	if err != nil {
		t.Fatalf("InspectWorkload returned error: %v", err)
	}
	if w.Name != "orders-api" {
		t.Errorf("Name = %q, want orders-api", w.Name)
	}
	if w.Namespace != "prod" {
		t.Errorf("Namespace = %q, want prod", w.Namespace)
	}
	if w.Replicas != 3 {
		t.Errorf("Replicas = %d, want 3", w.Replicas)
	}
	if w.Image != "acme/orders-api:3e9f1aa" {
		t.Errorf("Image = %q, want acme/orders-api:3e9f1aa", w.Image)
	}
}

func TestInspectWorkloadDefaultsReplicas(t *testing.T) {
	yaml := strings.Replace(deploymentYAML, "  replicas: 3\n", "", 1)
	path := writeManifest(t, "deploy.yaml", yaml)

	w, err := InspectWorkload(path)
	if err != nil {
		t.Fatalf("InspectWorkload returned error: %v", err)
	}
	if w.Replicas != 1 {
		t.Errorf("Replicas = %d, want default 1", w.Replicas)
	}
}

func TestInspectWorkloadRejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			name:    "wrong kind",
			content: serviceYAML,
			wantIn:  "want Deployment",
		},
		{
			name:    "negative replicas",
			content: strings.Replace(deploymentYAML, "replicas: 3", "replicas: -1", 1),
			wantIn:  "negative replicas",
		},
		{
			name:    "missing image",
			content: strings.Replace(deploymentYAML, "          image: acme/orders-api:3e9f1aa\n", "", 1),
			wantIn:  "no image",
		},
		{
			name:    "not yaml",
			content: "{{{",
			wantIn:  "manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, "bad.yaml", tt.content)
			_, err := InspectWorkload(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantIn)
			}
		})
	}
}

func TestInspectWorkloadMissingFile(t *testing.T) {
	_, err := InspectWorkload(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestIsService(t *testing.T) {
	svc := writeManifest(t, "svc.yaml", serviceYAML)
	dep := writeManifest(t, "deploy.yaml", deploymentYAML)

	if ok, err := IsService(svc); err != nil || !ok {
		t.Errorf("IsService(service) = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := IsService(dep); err != nil || ok {
		t.Errorf("IsService(deployment) = (%v, %v), want (false, nil)", ok, err)
	}
}
