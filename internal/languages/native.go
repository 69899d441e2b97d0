package languages

import (
	"context"
	"path/filepath"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// nativeAdapter compiles to <dir>/<jobId>.out and executes it directly.
type nativeAdapter struct {
	base
}

func (a *nativeAdapter) vars(src *model.SourceArtifact) vars {
	return vars{
		source: src.Path,
		output: filepath.Join(src.Dir, src.JobID+".out"),
		dir:    src.Dir,
	}
}

func (a *nativeAdapter) Compile(ctx context.Context, src *model.SourceArtifact) (*Build, error) {
	v := a.vars(src)
	res, err := a.compile(ctx, v)
	if err != nil {
		return nil, err
	}
	build := &Build{Result: res}
	if a.rejected(res) {
		return build, nil
	}
	build.Artifact = &model.CompiledArtifact{JobID: src.JobID, Path: v.output}
	return build, nil
}

func (a *nativeAdapter) Run(ctx context.Context, src *model.SourceArtifact, build *Build, stdin []byte) (*sandbox.Result, error) {
	if build == nil || build.Artifact == nil {
		return nil, errNotBuilt
	}
	v := a.vars(src)
	v.output = build.Artifact.Path
	return a.run(ctx, v, stdin)
}
