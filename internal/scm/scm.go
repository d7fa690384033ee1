// Package scm reads source control state. The engine only needs enough
// git to name image tags after commits.
package scm

import (
	"context"
	"fmt"
	"strings"

	"github.com/slipway-io/slipway/runner"
)

// ShortCommit returns the abbreviated commit hash of HEAD for the
// repository containing dir. Runs that pin no image tag use it as the
// immutable tag.
func ShortCommit(ctx context.Context, r runner.CommandRunner, dir string) (string, error) {
	out, err := r.Run(ctx, "git", "-C", dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving HEAD commit in %s: %s: %w", dir, strings.TrimSpace(out), err)
	}
	commit := strings.TrimSpace(out)
	if commit == "" {
		return "", fmt.Errorf("git reported no commit for %s", dir)
	}
	return commit, nil
}

// IsWorkTreeClean reports whether dir's work tree has no uncommitted
// changes. A dirty tree means the image tag names a commit the build
// context has already drifted from, which is worth a warning before a
// push.
func IsWorkTreeClean(ctx context.Context, r runner.CommandRunner, dir string) (bool, error) {
	out, err := r.Run(ctx, "git", "-C", dir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking work tree in %s: %s: %w", dir, strings.TrimSpace(out), err)
	}
	return strings.TrimSpace(out) == "", nil
}
