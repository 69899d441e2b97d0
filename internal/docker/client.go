package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// jobLabel marks containers created for a job phase.
const jobLabel = "judge.job"

type dockerClient interface {
	Close() error
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// Client owns the Docker API connection shared by all language runners.
type Client struct {
	d      dockerClient
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}
	return newWithClient(cli, logger), nil
}

func newWithClient(d dockerClient, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{d: d, logger: logger}
}

func (c *Client) Close() error {
	return c.d.Close()
}

// EnsureImage pulls ref unless it is already present locally.
func (c *Client) EnsureImage(ctx context.Context, ref string) error {
	if _, err := c.d.ImageInspect(ctx, ref); err == nil {
		return nil
	}
	c.logger.Info("pulling image", "image", ref)

	out, err := c.d.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pull %s: %w", ref, err)
	}
	defer out.Close()
	if _, err := io.Copy(io.Discard, out); err != nil {
		return fmt.Errorf("docker: consume pull output for %s: %w", ref, err)
	}
	return nil
}

// SweepContainers removes exited job containers that a crashed run left
// behind.
func (c *Client) SweepContainers(ctx context.Context) error {
	containers, err := c.d.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("status", "exited"),
			filters.Arg("label", jobLabel),
		),
	})
	if err != nil {
		return fmt.Errorf("docker: list containers: %w", err)
	}

	for _, ctr := range containers {
		if err := c.d.ContainerRemove(ctx, ctr.ID, container.RemoveOptions{Force: true}); err != nil {
			c.logger.Warn("failed to remove stale container", "container", shortID(ctr.ID), "error", err)
			continue
		}
		c.logger.Info("removed stale container", "container", shortID(ctr.ID))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
