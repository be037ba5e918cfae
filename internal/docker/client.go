// Package docker provides the narrow slice of the Docker Engine API the
// janitor needs: volume metadata for target resolution and the volume
// inventory, and container labels for registration discovery.
package docker

import (
	"context"
	"fmt"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/volume"
	dockerclient "github.com/moby/moby/client"
)

// Client is the engine surface consumed by the resolver, discovery and the
// volumes endpoint. Tests substitute fakes.
type Client interface {
	InspectVolume(ctx context.Context, name string) (volume.Volume, error)
	ListVolumes(ctx context.Context) ([]volume.Volume, error)
	ListContainers(ctx context.Context) ([]container.Summary, error)
	Close() error
}

var _ Client = (*EngineClient)(nil)

// Error wraps an engine API failure with the operation that produced it.
type Error struct {
	Op      string
	Err     error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("docker %s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// EngineClient talks to a real Docker daemon.
type EngineClient struct {
	client *dockerclient.Client
}

// New connects to the daemon configured in the environment and verifies it
// responds before returning.
func New() (*EngineClient, error) {
	cli, err := dockerclient.New(dockerclient.WithAPIVersionNegotiation(), dockerclient.FromEnv)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err, Message: "failed to connect to Docker daemon"}
	}

	ctx := context.Background()
	if _, err := cli.Ping(ctx, dockerclient.PingOptions{NegotiateAPIVersion: true}); err != nil {
		return nil, &Error{Op: "ping", Err: err, Message: "Docker daemon not available"}
	}

	return &EngineClient{client: cli}, nil
}

func (c *EngineClient) Close() error {
	return c.client.Close()
}

// InspectVolume returns the volume's metadata, including its mountpoint.
func (c *EngineClient) InspectVolume(ctx context.Context, name string) (volume.Volume, error) {
	res, err := c.client.VolumeInspect(ctx, name, dockerclient.VolumeInspectOptions{})
	if err != nil {
		return volume.Volume{}, &Error{Op: "volume_inspect", Err: err, Message: fmt.Sprintf("failed to inspect volume %s", name)}
	}
	return res.Volume, nil
}

// ListVolumes returns every volume known to the daemon.
func (c *EngineClient) ListVolumes(ctx context.Context) ([]volume.Volume, error) {
	res, err := c.client.VolumeList(ctx, dockerclient.VolumeListOptions{})
	if err != nil {
		return nil, &Error{Op: "volume_list", Err: err, Message: "failed to list volumes"}
	}
	return res.Items, nil
}

// ListContainers returns every container, running or not, so stopped services
// still contribute their cleanup labels.
func (c *EngineClient) ListContainers(ctx context.Context) ([]container.Summary, error) {
	res, err := c.client.ContainerList(ctx, dockerclient.ContainerListOptions{All: true})
	if err != nil {
		return nil, &Error{Op: "container_list", Err: err, Message: "failed to list containers"}
	}
	return res.Items, nil
}
