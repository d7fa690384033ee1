package scm

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/slipway-io/slipway/runner"
)

func TestShortCommit(t *testing.T) {
	r := &runner.FakeRunner{Responses: []runner.FakeResponse{{Output: "3e9f1aa\n"}}}
	commit, err := ShortCommit(context.Background(), r, "/src/orders-api")
	if err != nil {
		t.Fatalf("ShortCommit: %v", err)
	}
	if commit != "3e9f1aa" {
		t.Errorf("commit = %q, want 3e9f1aa", commit)
	}

	want := []string{"git", "-C", "/src/orders-api", "rev-parse", "--short", "HEAD"}
	if !reflect.DeepEqual(r.Calls[0], want) {
		t.Errorf("call = %v, want %v", r.Calls[0], want)
	}
}

func TestShortCommit_NotARepository(t *testing.T) {
	r := &runner.FakeRunner{Responses: []runner.FakeResponse{
		{Output: "fatal: not a git repository", Err: errors.New("exit status 128")},
	}}
	if _, err := ShortCommit(context.Background(), r, "/tmp"); err == nil {
		t.Fatal("expected error")
	}
}

func TestShortCommit_EmptyOutput(t *testing.T) {
	r := &runner.FakeRunner{}
	if _, err := ShortCommit(context.Background(), r, "."); err == nil {
		t.Fatal("expected error for empty git output")
	}
}

func TestIsWorkTreeClean(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"clean", "", true},
		{"clean with newline", "\n", true},
		{"dirty", " M container/docker.go\n?? notes.txt\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &runner.FakeRunner{Responses: []runner.FakeResponse{{Output: tt.output}}}
			clean, err := IsWorkTreeClean(context.Background(), r, ".")
			if err != nil {
				t.Fatalf("IsWorkTreeClean: %v", err)
			}
			if clean != tt.want {
				t.Errorf("clean = %v, want %v", clean, tt.want)
			}
		})
	}
}
