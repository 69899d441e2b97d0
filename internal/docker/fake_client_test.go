package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeConn struct {
	net.Conn
	mu          sync.Mutex
	written     bytes.Buffer
	closedWrite bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

func (c *fakeConn) CloseWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closedWrite = true
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) snapshot() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String(), c.closedWrite
}

type fakeDockerClient struct {
	mu sync.Mutex

	createErr error
	startErr  error
	// exitCode is sent on ContainerWait unless block is set.
	exitCode int64
	block    bool
	stdout   string
	stderr   string
	// killErr is returned by ContainerKill; raceExit delivers exitCode on
	// the wait channel as the kill is attempted.
	killErr  error
	raceExit bool
	waitCh   chan container.WaitResponse

	conn       *fakeConn
	created    []*container.Config
	hostConfig []*container.HostConfig
	killed     []string
	removed    []string
	pulled     []string
	haveImages map[string]bool
	listed     []container.Summary
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{conn: &fakeConn{}, haveImages: map[string]bool{}}
}

func (f *fakeDockerClient) Close() error { return nil }

func (f *fakeDockerClient) ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.haveImages[imageID] {
		return image.InspectResponse{ID: imageID}, nil
	}
	return image.InspectResponse{}, errors.New("no such image")
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.pulled = append(f.pulled, ref)
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader([]byte(`{"status":"done"}`))), nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.created = append(f.created, config)
	f.hostConfig = append(f.hostConfig, hostConfig)
	return container.CreateResponse{ID: fmt.Sprintf("container-%d-0123456789", len(f.created))}, nil
}

func (f *fakeDockerClient) ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error) {
	return types.HijackedResponse{Conn: f.conn}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return f.startErr
}

func (f *fakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	f.mu.Lock()
	f.waitCh = statusCh
	f.mu.Unlock()
	if !f.block {
		statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	}
	return statusCh, errCh
}

func (f *fakeDockerClient) ContainerKill(ctx context.Context, containerID, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, containerID+":"+signal)
	if f.raceExit {
		f.waitCh <- container.WaitResponse{StatusCode: f.exitCode}
	}
	return f.killErr
}

func (f *fakeDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if f.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	}
	if f.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeDockerClient) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	return f.listed, nil
}
