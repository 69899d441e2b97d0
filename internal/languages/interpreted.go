package languages

import (
	"context"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// interpretedAdapter hands the source file straight to the interpreter.
type interpretedAdapter struct {
	base
}

func (a *interpretedAdapter) Compile(ctx context.Context, src *model.SourceArtifact) (*Build, error) {
	return &Build{Skipped: true}, nil
}

func (a *interpretedAdapter) Run(ctx context.Context, src *model.SourceArtifact, build *Build, stdin []byte) (*sandbox.Result, error) {
	return a.run(ctx, vars{source: src.Path, dir: src.Dir}, stdin)
}
