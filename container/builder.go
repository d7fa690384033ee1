// Package container builds, tags, and pushes images via docker, podman, or
// buildah, and resolves image references.
package container

import "context"

// Builder is the interface to a container image tool. Operations return the
// tool's combined output so callers can record it alongside stage results.
type Builder interface {
	Build(ctx context.Context, opts BuildOptions) (*BuildResult, error)
	Tag(ctx context.Context, src, dst string) (string, error)
	Push(ctx context.Context, image string) (string, error)
	Login(ctx context.Context, registry, username, password string) error
	Logout(ctx context.Context, registry string) error
	Available() bool
	Name() string
}

// BuildOptions configures a container image build.
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tag        string
	Platform   string
	NoCache    bool
	BuildArgs  map[string]string
}

// BuildResult holds the result of a container image build.
type BuildResult struct {
	ImageID string
	Tag     string
	Output  string
}

// Detect returns the first available container builder in order: docker,
// podman, buildah. Returns nil if no builder is available. authDir scopes
// registry logins to the given directory instead of the user keychain.
func Detect(authDir string) Builder {
	builders := []Builder{
		&DockerBuilder{ConfigDir: authDir},
		&PodmanBuilder{AuthDir: authDir},
		&BuildahBuilder{AuthDir: authDir},
	}
	for _, b := range builders {
		if b.Available() {
			return b
		}
	}
	return nil
}

// Get returns a builder by name, or nil if the name is unknown.
func Get(name, authDir string) Builder {
	switch name {
	case "docker":
		return &DockerBuilder{ConfigDir: authDir}
	case "podman":
		return &PodmanBuilder{AuthDir: authDir}
	case "buildah":
		return &BuildahBuilder{AuthDir: authDir}
	default:
		return nil
	}
}
