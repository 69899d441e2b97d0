package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrSpawnFailed means the program could not be started at all. It is never
// returned for a program that started and then exited non-zero.
var ErrSpawnFailed = errors.New("spawn failed")

// DefaultOutputLimit caps each captured stream.
const DefaultOutputLimit = 1 << 20

// Command describes one child process invocation.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   []byte
	Timeout time.Duration
}

// Result is the raw outcome of a process that was started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	// Truncated is set when either stream exceeded the output limit.
	Truncated bool
	Duration  time.Duration
}

// Runner executes a single external program with piped standard streams and
// a hard wall-clock deadline.
type Runner interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (*Result, error)

func (f RunnerFunc) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return f(ctx, cmd)
}
