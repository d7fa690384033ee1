package container

import (
	"fmt"

	"github.com/distribution/reference"
)

// FloatingTag is the mutable convenience tag repointed after every
// successful immutable push.
const FloatingTag = "latest"

// ImageRef is a fully resolved image reference in its familiar form,
// e.g. "registry-username/image-name" plus a tag.
type ImageRef struct {
	Repository string
	Tag        string
}

func (r ImageRef) String() string { return r.Repository + ":" + r.Tag }

// IsZero reports whether the reference has not been resolved yet.
func (r ImageRef) IsZero() bool { return r.Repository == "" }

// Floating returns the same repository under the floating tag.
func (r ImageRef) Floating() ImageRef {
	return ImageRef{Repository: r.Repository, Tag: FloatingTag}
}

// Domain returns the registry host the reference pushes to, "docker.io"
// for bare repositories.
func (r ImageRef) Domain() string {
	named, err := reference.ParseNormalizedNamed(r.Repository)
	if err != nil {
		return ""
	}
	return reference.Domain(named)
}

// NewRef validates repo and tag against the distribution grammar and
// returns the normalized familiar reference.
func NewRef(repo, tag string) (ImageRef, error) {
	named, err := reference.ParseNormalizedNamed(repo)
	if err != nil {
		return ImageRef{}, fmt.Errorf("parsing image repository %q: %w", repo, err)
	}
	if _, ok := named.(reference.Tagged); ok {
		return ImageRef{}, fmt.Errorf("image repository %q must not carry a tag", repo)
	}
	tagged, err := reference.WithTag(reference.TrimNamed(named), tag)
	if err != nil {
		return ImageRef{}, fmt.Errorf("applying tag %q: %w", tag, err)
	}
	return ImageRef{Repository: reference.FamiliarName(tagged), Tag: tag}, nil
}
