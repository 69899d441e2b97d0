package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the process is
// gone, e.g. when a detached grandchild still holds stdout open.
const waitDelay = 500 * time.Millisecond

// LocalRunner runs programs as direct children of this process.
type LocalRunner struct {
	OutputLimit int
}

func NewLocalRunner(outputLimit int) *LocalRunner {
	return &LocalRunner{OutputLimit: outputLimit}
}

func (r *LocalRunner) Execute(ctx context.Context, c Command) (*Result, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawnFailed)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = c.Env
	}
	// A non-file reader makes exec pipe stdin and close it once the bytes are
	// written, so the child always observes end of input.
	cmd.Stdin = bytes.NewReader(c.Stdin)
	stdout := NewCappedBuffer(r.OutputLimit)
	stderr := NewCappedBuffer(r.OutputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, c.Path, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var (
		waitErr  error
		timedOut bool
	)
	select {
	case waitErr = <-done:
	case <-deadline:
		timedOut = true
		killProcessGroup(cmd)
		waitErr = <-done
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return nil, fmt.Errorf("run %s: %w", c.Path, ctx.Err())
	}

	result := &Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		TimedOut:  timedOut,
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
		ExitCode:  -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = exitCode(cmd.ProcessState)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return result, fmt.Errorf("wait for %s: %w", c.Path, waitErr)
	}
	return result, nil
}
