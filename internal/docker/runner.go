package docker

import (
	"context"
	"fmt"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"

	"github.com/sudankdk/judge/internal/sandbox"
)

// killTimeout bounds the cleanup calls made after the job deadline.
const killTimeout = 5 * time.Second

// RunnerConfig describes the container one language's phases run in.
type RunnerConfig struct {
	Image string
	// Binds are host:container mounts; the artifact root is mounted at the
	// same path so commands need no path rewriting.
	Binds       []string
	Memory      int64
	NanoCPUs    int64
	Network     bool
	OutputLimit int
}

// Runner implements sandbox.Runner with one throwaway container per command.
type Runner struct {
	c   *Client
	cfg RunnerConfig
}

func (c *Client) NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{c: c, cfg: cfg}
}

func (r *Runner) containerConfig(cmd sandbox.Command) *container.Config {
	return &container.Config{
		Image:           r.cfg.Image,
		Cmd:             append([]string{cmd.Path}, cmd.Args...),
		Env:             cmd.Env,
		WorkingDir:      cmd.Dir,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		StdinOnce:       true,
		Tty:             false,
		NetworkDisabled: !r.cfg.Network,
		Labels:          map[string]string{jobLabel: "true"},
	}
}

func (r *Runner) hostConfig() *container.HostConfig {
	hc := &container.HostConfig{
		AutoRemove: false,
		Binds:      r.cfg.Binds,
		Tmpfs:      map[string]string{"/tmp": "rw,exec,size=64m"},
		Resources: container.Resources{
			Memory:   r.cfg.Memory,
			NanoCPUs: r.cfg.NanoCPUs,
			Ulimits: []*units.Ulimit{
				{Name: "nproc", Soft: 64, Hard: 128},
				{Name: "nofile", Soft: 64, Hard: 128},
				{Name: "core", Soft: 0, Hard: 0},
				// largest file the program may write
				{Name: "fsize", Soft: 20 * 1024 * 1024, Hard: 20 * 1024 * 1024},
			},
		},
	}
	if r.cfg.Memory > 0 {
		hc.Resources.MemorySwap = r.cfg.Memory
	}
	if !r.cfg.Network {
		hc.NetworkMode = "none"
	}
	return hc
}

func (r *Runner) Execute(ctx context.Context, cmd sandbox.Command) (*sandbox.Result, error) {
	d := r.c.d

	resp, err := d.ContainerCreate(ctx, r.containerConfig(cmd), r.hostConfig(), nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", sandbox.ErrSpawnFailed, err)
	}
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
		defer cancel()
		if err := d.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			r.c.logger.Warn("failed to remove container", "container", shortID(resp.ID), "error", err)
		}
	}()

	attach, err := d.ContainerAttach(ctx, resp.ID, container.AttachOptions{Stream: true, Stdin: true})
	if err != nil {
		return nil, fmt.Errorf("%w: attach container: %v", sandbox.ErrSpawnFailed, err)
	}
	defer attach.Close()

	start := time.Now()
	if err := d.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start container: %v", sandbox.ErrSpawnFailed, err)
	}

	// Fed from a goroutine so a program that never reads stdin cannot stall
	// the deadline race below.
	go func() {
		if len(cmd.Stdin) > 0 {
			_, _ = attach.Conn.Write(cmd.Stdin)
		}
		if closer, ok := attach.Conn.(interface{ CloseWrite() error }); ok {
			_ = closer.CloseWrite()
		}
	}()

	var deadline <-chan time.Time
	if cmd.Timeout > 0 {
		timer := time.NewTimer(cmd.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	result := &sandbox.Result{ExitCode: -1}
	statusCh, errCh := d.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container wait: %s", status.Error.Message)
		}
		result.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		return nil, fmt.Errorf("container wait: %w", err)
	case <-deadline:
		result.TimedOut = true
		result.ExitCode = 137
		exited, err := r.kill(resp.ID)
		if err != nil {
			return nil, err
		}
		if exited {
			// The program finished as the deadline fired; keep its own status.
			if status, ok := awaitStatus(statusCh); ok {
				result.TimedOut = false
				result.ExitCode = int(status.StatusCode)
			}
		}
	case <-ctx.Done():
		_, _ = r.kill(resp.ID)
		return nil, fmt.Errorf("container wait: %w", ctx.Err())
	}
	result.Duration = time.Since(start)

	stdout := sandbox.NewCappedBuffer(r.cfg.OutputLimit)
	stderr := sandbox.NewCappedBuffer(r.cfg.OutputLimit)
	if err := r.fetchLogs(resp.ID, stdout, stderr); err != nil {
		return nil, err
	}
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	result.Truncated = stdout.Truncated() || stderr.Truncated()
	return result, nil
}

// kill reports exited when the container had already stopped on its own.
func (r *Runner) kill(id string) (exited bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	err = r.c.d.ContainerKill(ctx, id, "SIGKILL")
	switch {
	case err == nil:
		return false, nil
	case client.IsErrNotFound(err), cerrdefs.IsConflict(err):
		return true, nil
	}
	return false, fmt.Errorf("kill container after time limit: %w", err)
}

func awaitStatus(statusCh <-chan container.WaitResponse) (container.WaitResponse, bool) {
	timer := time.NewTimer(killTimeout)
	defer timer.Stop()
	select {
	case status := <-statusCh:
		return status, status.Error == nil
	case <-timer.C:
		return container.WaitResponse{}, false
	}
}

// fetchLogs reads the container's buffered output; it works for killed
// containers too, which is how partial output survives a timeout.
func (r *Runner) fetchLogs(id string, stdout, stderr *sandbox.CappedBuffer) error {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	logs, err := r.c.d.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		return fmt.Errorf("demultiplex logs: %w", err)
	}
	return nil
}
