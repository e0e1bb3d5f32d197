package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
)

// dockerAPI is the slice of the Docker SDK the resolver uses.
type dockerAPI interface {
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	Close() error
}

// DockerResolver resolves references against the local docker daemon. The
// daemon's digest for the image is pinned on the artifact and the image
// config labels are carried along. With pull enabled, images missing
// locally are pulled first.
type DockerResolver struct {
	api    dockerAPI
	pull   bool
	output io.Writer
}

// NewDockerResolver creates a resolver on the daemon named by the
// environment. Pull progress is streamed to output; nil discards it.
func NewDockerResolver(pull bool, output io.Writer) (*DockerResolver, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if output == nil {
		output = io.Discard
	}
	return &DockerResolver{api: cli, pull: pull, output: output}, nil
}

// Close closes the underlying docker client.
func (r *DockerResolver) Close() error {
	return r.api.Close()
}

func (r *DockerResolver) Resolve(ctx context.Context, image string) (*Artifact, error) {
	artifact, err := normalizeReference(image)
	if err != nil {
		return nil, err
	}

	inspect, _, err := r.api.ImageInspectWithRaw(ctx, artifact.Reference)
	if errdefs.IsNotFound(err) && r.pull {
		if err := r.pullImage(ctx, artifact.Reference); err != nil {
			return nil, err
		}
		inspect, _, err = r.api.ImageInspectWithRaw(ctx, artifact.Reference)
	}
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("image %s not found in local docker daemon", artifact.Reference)
		}
		return nil, fmt.Errorf("failed to inspect image %s: %w", artifact.Reference, err)
	}

	if digest := repoDigestFor(inspect.RepoDigests, artifact.Name); digest != "" {
		artifact.Digest = digest
	}
	if inspect.Config != nil {
		artifact.Labels = inspect.Config.Labels
	}
	return artifact, nil
}

func (r *DockerResolver) pullImage(ctx context.Context, ref string) error {
	reader, err := r.api.ImagePull(ctx, ref, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer func() { _ = reader.Close() }()

	if err := jsonmessage.DisplayJSONMessagesStream(reader, r.output, 0, false, nil); err != nil {
		return fmt.Errorf("pull failed for image %s: %w", ref, err)
	}
	return nil
}

// repoDigestFor picks the daemon digest recorded for this repository.
func repoDigestFor(repoDigests []string, name string) string {
	for _, repoDigest := range repoDigests {
		if repo, digest, ok := strings.Cut(repoDigest, "@"); ok && repo == name {
			return digest
		}
	}
	return ""
}
