package cmd

import (
	"testing"
	"time"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/pipeline"
	"github.com/slipway-io/slipway/store"
)

func seedRun(t *testing.T, dir, id string) {
	t.Helper()
	res := &pipeline.RunResult{
		ID:        id,
		Pipeline:  "orders-api",
		Status:    pipeline.StatusSucceeded,
		StartedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Image:     "acme/orders-api:abc1234",
		Stages: []*pipeline.StageResult{
			{Stage: "build", Kind: config.KindBuild, Status: pipeline.StatusSucceeded, Output: "built\n"},
		},
	}
	if _, err := store.New(dir).Save(res); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
}

func withDataDir(t *testing.T, dir string) {
	t.Helper()
	oldDataDir := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = oldDataDir })
}

func TestRunRunsList(t *testing.T) {
	dir := t.TempDir()
	seedRun(t, dir, "20250314-092653-orders-api-ab12")
	withDataDir(t, dir)

	if err := runRunsList(nil, nil); err != nil {
		t.Fatalf("runRunsList() error: %v", err)
	}
}

func TestRunRunsList_EmptyStore(t *testing.T) {
	withDataDir(t, t.TempDir())

	if err := runRunsList(nil, nil); err != nil {
		t.Fatalf("runRunsList() error: %v", err)
	}
}

func TestRunRunsShow(t *testing.T) {
	dir := t.TempDir()
	seedRun(t, dir, "20250314-092653-orders-api-ab12")
	withDataDir(t, dir)

	if err := runRunsShow(nil, []string{"20250314-092653-orders-api-ab12"}); err != nil {
		t.Fatalf("runRunsShow() error: %v", err)
	}
}

func TestRunRunsShow_Unknown(t *testing.T) {
	withDataDir(t, t.TempDir())

	if err := runRunsShow(nil, []string{"20250314-000000-none-0000"}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestRunRunsShow_StageLog(t *testing.T) {
	dir := t.TempDir()
	seedRun(t, dir, "20250314-092653-orders-api-ab12")
	withDataDir(t, dir)

	oldStage := showStage
	showStage = "build"
	defer func() { showStage = oldStage }()

	if err := runRunsShow(nil, []string{"20250314-092653-orders-api-ab12"}); err != nil {
		t.Fatalf("runRunsShow() error: %v", err)
	}
}

func TestRunRunsShow_StageWithoutLog(t *testing.T) {
	dir := t.TempDir()
	seedRun(t, dir, "20250314-092653-orders-api-ab12")
	withDataDir(t, dir)

	oldStage := showStage
	showStage = "push"
	defer func() { showStage = oldStage }()

	if err := runRunsShow(nil, []string{"20250314-092653-orders-api-ab12"}); err == nil {
		t.Fatal("expected error for stage with no captured log")
	}
}
