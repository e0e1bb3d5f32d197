// Package artifact resolves container image references into deployable
// artifacts.
package artifact

import (
	"context"
	"fmt"

	"github.com/distribution/reference"
)

// Artifact is a resolved container image ready to hand to the deployer.
type Artifact struct {
	// Reference is the normalized image reference to run.
	Reference string

	// Name is the repository path without tag or digest.
	Name string

	// Tag is the tag portion, "latest" when the caller gave none.
	Tag string

	// Digest pins the exact image when known.
	Digest string

	// Labels are the image config labels, populated when a docker
	// daemon was consulted.
	Labels map[string]string
}

// Resolver turns a caller-supplied image reference into an Artifact.
type Resolver interface {
	Resolve(ctx context.Context, image string) (*Artifact, error)
}

// RefResolver validates and normalizes references without touching a
// docker daemon. It is the default resolver: the cluster pulls images
// itself, so existence is discovered by the kubelet at deploy time.
type RefResolver struct{}

func (RefResolver) Resolve(_ context.Context, image string) (*Artifact, error) {
	return normalizeReference(image)
}

func normalizeReference(image string) (*Artifact, error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", image, err)
	}
	named = reference.TagNameOnly(named)

	artifact := &Artifact{
		Reference: reference.FamiliarString(named),
		Name:      reference.FamiliarName(named),
	}
	if tagged, ok := named.(reference.Tagged); ok {
		artifact.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		artifact.Digest = digested.Digest().String()
	}
	return artifact, nil
}
