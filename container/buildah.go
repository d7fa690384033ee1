package container

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BuildahBuilder builds, tags, and pushes container images using the buildah CLI.
type BuildahBuilder struct {
	// AuthDir, when set, scopes registry credentials to REGISTRY_AUTH_FILE
	// under this directory instead of the user auth file.
	AuthDir string
}

func (b *BuildahBuilder) Name() string { return "buildah" }

func (b *BuildahBuilder) Available() bool {
	return b.command(context.Background(), "version").Run() == nil
}

func (b *BuildahBuilder) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "buildah", args...)
	if b.AuthDir != "" {
		cmd.Env = append(os.Environ(), "REGISTRY_AUTH_FILE="+filepath.Join(b.AuthDir, "auth.json"))
	}
	return cmd
}

func (b *BuildahBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	args := []string{"bud"}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	for k, v := range opts.BuildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}

	contextDir := opts.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	args = append(args, contextDir)

	cmd := b.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	combined := string(out) + stderr.String()
	if err != nil {
		return nil, fmt.Errorf("buildah bud failed: %s: %w", stderr.String(), err)
	}

	// Buildah outputs the image ID on the last line
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	imageID := ""
	if len(lines) > 0 {
		imageID = strings.TrimSpace(lines[len(lines)-1])
	}

	return &BuildResult{
		ImageID: imageID,
		Tag:     opts.Tag,
		Output:  combined,
	}, nil
}

func (b *BuildahBuilder) Tag(ctx context.Context, src, dst string) (string, error) {
	out, err := b.command(ctx, "tag", src, dst).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("buildah tag failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

func (b *BuildahBuilder) Push(ctx context.Context, image string) (string, error) {
	out, err := b.command(ctx, "push", image).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("buildah push failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

func (b *BuildahBuilder) Login(ctx context.Context, registry, username, password string) error {
	args := []string{"login", "-u", username, "--password-stdin"}
	if registry != "" {
		args = append(args, registry)
	}
	cmd := b.command(ctx, args...)
	cmd.Stdin = strings.NewReader(password)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("buildah login failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (b *BuildahBuilder) Logout(ctx context.Context, registry string) error {
	args := []string{"logout"}
	if registry != "" {
		args = append(args, registry)
	}
	if out, err := b.command(ctx, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("buildah logout failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}
