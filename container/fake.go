package container

import (
	"context"
	"fmt"
	"sync"
)

// FakeBuilder is a scriptable Builder for tests. Failures are keyed per
// operation; pushes can additionally fail per image reference so partial
// push scenarios can be exercised. Every operation is recorded in Ops.
type FakeBuilder struct {
	mu sync.Mutex

	BuildErr error
	TagErr   error
	PushErr  map[string]error
	LoginErr error

	BuildOutput string
	PushOutput  string
	ImageID     string

	Ops []string
}

var _ Builder = &FakeBuilder{}

func (f *FakeBuilder) Name() string    { return "fake" }
func (f *FakeBuilder) Available() bool { return true }

func (f *FakeBuilder) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, op)
}

func (f *FakeBuilder) Build(_ context.Context, opts BuildOptions) (*BuildResult, error) {
	f.record("build " + opts.Tag)
	if f.BuildErr != nil {
		return nil, f.BuildErr
	}
	id := f.ImageID
	if id == "" {
		id = "sha256:deadbeef"
	}
	return &BuildResult{ImageID: id, Tag: opts.Tag, Output: f.BuildOutput}, nil
}

func (f *FakeBuilder) Tag(_ context.Context, src, dst string) (string, error) {
	f.record(fmt.Sprintf("tag %s %s", src, dst))
	if f.TagErr != nil {
		return "", f.TagErr
	}
	return "", nil
}

func (f *FakeBuilder) Push(_ context.Context, image string) (string, error) {
	f.record("push " + image)
	if err := f.PushErr[image]; err != nil {
		return f.PushOutput, err
	}
	return f.PushOutput, nil
}

func (f *FakeBuilder) Login(_ context.Context, registry, username, _ string) error {
	f.record(fmt.Sprintf("login %s %s", registry, username))
	return f.LoginErr
}

func (f *FakeBuilder) Logout(_ context.Context, registry string) error {
	f.record("logout " + registry)
	return nil
}
