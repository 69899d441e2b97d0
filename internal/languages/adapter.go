package languages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// Build is the outcome of a compile phase.
type Build struct {
	// Artifact is nil when the build was skipped or failed.
	Artifact *model.CompiledArtifact
	Skipped  bool
	// Result is the compiler's raw result; nil for skipped builds.
	Result *sandbox.Result
}

// Failed reports a compile phase that ran and produced nothing runnable.
func (b *Build) Failed() bool {
	return b != nil && !b.Skipped && b.Artifact == nil
}

// Adapter runs the compile and run phases of one language. Compile returns an
// error only when the compiler could not be invoked; a rejected program is a
// failed Build.
type Adapter interface {
	Spec() Spec
	Compile(ctx context.Context, src *model.SourceArtifact) (*Build, error)
	Run(ctx context.Context, src *model.SourceArtifact, build *Build, stdin []byte) (*sandbox.Result, error)
}

// NewAdapter picks the variant for spec.Kind.
func NewAdapter(spec Spec, runner sandbox.Runner) (Adapter, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, fmt.Errorf("language %q: runner is required", spec.Name)
	}
	b := base{spec: spec, runner: runner}
	switch spec.Kind {
	case model.KindNative:
		return &nativeAdapter{b}, nil
	case model.KindBytecode:
		return &bytecodeAdapter{b}, nil
	case model.KindInterpreted:
		return &interpretedAdapter{b}, nil
	}
	return nil, fmt.Errorf("language %q: unknown kind %q", spec.Name, spec.Kind)
}

var errNotBuilt = errors.New("no compiled artifact to run")

type base struct {
	spec   Spec
	runner sandbox.Runner
}

func (b *base) Spec() Spec {
	return b.spec
}

type vars struct {
	source string
	output string
	class  string
	dir    string
}

func (v vars) expand(s string) string {
	return strings.NewReplacer(
		"{source}", v.source,
		"{output}", v.output,
		"{class}", v.class,
		"{dir}", v.dir,
	).Replace(s)
}

func (v vars) expandAll(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = v.expand(a)
	}
	return out
}

func (b *base) compile(ctx context.Context, v vars) (*sandbox.Result, error) {
	res, err := b.runner.Execute(ctx, sandbox.Command{
		Path:    b.spec.Compiler,
		Args:    v.expandAll(b.spec.CompileArgs),
		Dir:     v.dir,
		Timeout: b.spec.CompileTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%s compile: %w", b.spec.Name, err)
	}
	return res, nil
}

func (b *base) run(ctx context.Context, v vars, stdin []byte) (*sandbox.Result, error) {
	res, err := b.runner.Execute(ctx, sandbox.Command{
		Path:    v.expand(b.spec.Runtime),
		Args:    v.expandAll(b.spec.RunArgs),
		Dir:     v.dir,
		Stdin:   stdin,
		Timeout: b.spec.RunTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%s run: %w", b.spec.Name, err)
	}
	return res, nil
}

// rejected applies the build failure policy to a compiler result.
func (b *base) rejected(res *sandbox.Result) bool {
	if res.TimedOut || res.ExitCode != 0 {
		return true
	}
	return b.spec.StrictWarnings && len(bytes.TrimSpace(res.Stderr)) > 0
}
