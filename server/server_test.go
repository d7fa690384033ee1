package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slipway-io/slipway/container"
	"github.com/slipway-io/slipway/credentials"
	"github.com/slipway-io/slipway/logging"
	"github.com/slipway-io/slipway/pipeline"
	"github.com/slipway-io/slipway/runner"
	"github.com/slipway-io/slipway/stages"
	"github.com/slipway-io/slipway/store"
)

const localPipelineYAML = `version: 1
name: orders-api
image:
  repository: acme/orders-api
  tag: abc1234
target:
  kind: local
stages:
  - name: build
    kind: build
  - name: verify
    kind: verify
    run: echo ok
    depends_on: [build]
`

func discardLog() logging.Logger { return logging.NewJSONLogger(io.Discard, false) }

func newTestServer(t *testing.T, krunner *runner.FakeRunner) *Server {
	t.Helper()
	set := stages.NewSet("", krunner, discardLog())
	set.Builder = &container.FakeBuilder{}

	resolver := credentials.NewResolver()
	resolver.SetRegistry(credentials.RegistryCredential{Username: "robot", Password: "hunter2-8X9"})
	resolver.SetKubeconfig([]byte("apiVersion: v1\nkind: Config\nclusters: []\n"))

	controller := pipeline.NewController(set, resolver, discardLog())
	return New(controller, store.New(t.TempDir()), discardLog())
}

// waitForRun blocks until the run has left the active table.
func waitForRun(t *testing.T, s *Server, id string) {
	t.Helper()
	s.mu.Lock()
	run, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-run.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run %s did not finish in time", id)
	}
}

func submitRun(t *testing.T, baseURL, doc string) string {
	t.Helper()
	resp, err := http.Post(baseURL+"/api/v1/runs", "application/yaml", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("POST /api/v1/runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("submit status = %d, body: %s", resp.StatusCode, body)
	}

	var accepted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decoding accept response: %v", err)
	}
	if accepted.ID == "" {
		t.Fatal("accept response carries no run id")
	}
	if accepted.Status != string(pipeline.StatusRunning) {
		t.Fatalf("accept status = %q, want running", accepted.Status)
	}
	return accepted.ID
}

func getRun(t *testing.T, baseURL, id string) *pipeline.RunResult {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/v1/runs/" + id)
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get run status = %d", resp.StatusCode)
	}
	var res pipeline.RunResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	return &res
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestSubmitRun_Lifecycle(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	id := submitRun(t, ts.URL, localPipelineYAML)
	waitForRun(t, srv, id)

	res := getRun(t, ts.URL, id)
	if res.Status != pipeline.StatusSucceeded {
		t.Fatalf("status = %q, error = %q", res.Status, res.Error)
	}
	if res.Image != "acme/orders-api:abc1234" {
		t.Fatalf("image = %q", res.Image)
	}
	if len(res.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(res.Stages))
	}
	for _, st := range res.Stages {
		if st.Status != pipeline.StatusSucceeded {
			t.Fatalf("stage %s status = %q", st.Stage, st.Status)
		}
	}

	// The result must have been persisted, not just held in memory.
	if _, err := srv.store.Get(id); err != nil {
		t.Fatalf("stored result: %v", err)
	}
}

func TestSubmitRun_UnparseableDocument(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/yaml", strings.NewReader("{{nope"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitRun_InvalidDefinition(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	doc := `version: 1
name: orders-api
image:
  repository: acme/orders-api
  tag: abc1234
target:
  kind: local
stages:
  - name: build
    kind: compile
`
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/yaml", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Details) == 0 {
		t.Fatal("expected validation details")
	}
	if !strings.Contains(strings.Join(body.Details, "; "), "unknown kind") {
		t.Fatalf("details = %v", body.Details)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/runs/20250101-000000-nope-ffff")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelRun(t *testing.T) {
	dir := t.TempDir()
	workload := filepath.Join(dir, "deployment.yaml")
	manifest := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: orders-api
spec:
  replicas: 2
  template:
    spec:
      containers:
        - name: app
          image: acme/orders-api:abc1234
`
	if err := os.WriteFile(workload, []byte(manifest), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	// The observer never reports convergence, so the run sits in the
	// rollout watch until cancelled.
	krunner := &runner.FakeRunner{Handler: func(name string, args ...string) (string, error) {
		if strings.Contains(strings.Join(args, " "), "get deployment") {
			return `{"apiVersion":"apps/v1","kind":"Deployment","metadata":{"name":"orders-api"},"spec":{"replicas":2},"status":{"readyReplicas":1}}`, nil
		}
		return "", nil
	}}
	srv := newTestServer(t, krunner)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	doc := fmt.Sprintf(`version: 1
name: orders-api
image:
  repository: acme/orders-api
  tag: abc1234
target:
  kind: remote
  namespace: prod
  manifests:
    workload: %s
rollout:
  interval: 5ms
  timeout: 30s
stages:
  - name: creds
    kind: configure-credentials
  - name: deploy
    kind: deploy
    depends_on: [creds]
`, workload)

	id := submitRun(t, ts.URL, doc)

	resp, err := http.Post(ts.URL+"/api/v1/runs/"+id+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel status = %d, want 202", resp.StatusCode)
	}

	waitForRun(t, srv, id)

	res := getRun(t, ts.URL, id)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.ErrorKind != pipeline.KindCancellation {
		t.Fatalf("error kind = %q, want cancellation", res.ErrorKind)
	}
}

func TestCancelRun_Unknown(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs/20250101-000000-nope-ffff/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelRun_AlreadyFinished(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	id := submitRun(t, ts.URL, localPipelineYAML)
	waitForRun(t, srv, id)

	resp, err := http.Post(ts.URL+"/api/v1/runs/"+id+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, id := range []string{
		"20240101-120000-orders-api-aa11",
		"20250601-080000-orders-api-bb22",
	} {
		res := &pipeline.RunResult{ID: id, Pipeline: "orders-api", Status: pipeline.StatusSucceeded}
		if _, err := srv.store.Save(res); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}

	resp, err := http.Get(ts.URL + "/api/v1/runs")
	if err != nil {
		t.Fatalf("GET runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Runs []*pipeline.RunResult `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(body.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(body.Runs))
	}
	if body.Runs[0].ID != "20250601-080000-orders-api-bb22" {
		t.Fatalf("first run = %s, want newest", body.Runs[0].ID)
	}
}

func TestListRuns_Empty(t *testing.T) {
	srv := newTestServer(t, &runner.FakeRunner{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/runs")
	if err != nil {
		t.Fatalf("GET runs: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"runs":[]`) {
		t.Fatalf("body = %s", body)
	}
}
