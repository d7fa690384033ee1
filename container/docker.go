package container

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DockerBuilder builds, tags, and pushes container images using the docker CLI.
type DockerBuilder struct {
	// ConfigDir, when set, is passed as DOCKER_CONFIG so registry logins
	// land in a run-scoped directory instead of the user keychain.
	ConfigDir string
}

func (b *DockerBuilder) Name() string { return "docker" }

func (b *DockerBuilder) Available() bool {
	return b.command(context.Background(), "info").Run() == nil
}

func (b *DockerBuilder) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "docker", args...)
	if b.ConfigDir != "" {
		cmd.Env = append(os.Environ(), "DOCKER_CONFIG="+b.ConfigDir)
	}
	return cmd
}

func (b *DockerBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	args := []string{"build"}

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
		return nil, fmt.Errorf("docker build failed: %s: %w", stderr.String(), err)
	}

	return &BuildResult{
		ImageID: parseImageID(string(out)),
		Tag:     opts.Tag,
		Output:  combined,
	}, nil
}

func (b *DockerBuilder) Tag(ctx context.Context, src, dst string) (string, error) {
	out, err := b.command(ctx, "tag", src, dst).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("docker tag failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

func (b *DockerBuilder) Push(ctx context.Context, image string) (string, error) {
	out, err := b.command(ctx, "push", image).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("docker push failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

// Login authenticates to registry reading the password from stdin so it
// never appears in the process table. An empty registry means Docker Hub.
func (b *DockerBuilder) Login(ctx context.Context, registry, username, password string) error {
	args := []string{"login", "-u", username, "--password-stdin"}
	if registry != "" {
		args = append(args, registry)
	}
	cmd := b.command(ctx, args...)
	cmd.Stdin = strings.NewReader(password)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker login failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (b *DockerBuilder) Logout(ctx context.Context, registry string) error {
	args := []string{"logout"}
	if registry != "" {
		args = append(args, registry)
	}
	if out, err := b.command(ctx, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("docker logout failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// parseImageID extracts the image ID from docker build output.
func parseImageID(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		// Docker outputs "Successfully built <id>" or just a sha256 hash
		if strings.HasPrefix(line, "Successfully built ") {
			return strings.TrimPrefix(line, "Successfully built ")
		}
		if strings.HasPrefix(line, "sha256:") {
			return line
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}
