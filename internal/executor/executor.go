package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sudankdk/judge/internal/languages"
	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// Resolver maps a language token to its adapter.
type Resolver interface {
	Resolve(token string) (languages.Adapter, error)
}

// Stager owns the on-disk artifacts of a job.
type Stager interface {
	Stage(language, tag, ext, source string) (*model.SourceArtifact, error)
	Remove(src *model.SourceArtifact) error
}

// Recorder persists finished outcomes. Recording never alters an outcome.
type Recorder interface {
	Record(ctx context.Context, o *model.ExecutionOutcome) error
}

type Options struct {
	// EagerCleanup removes a job's files as soon as its outcome is known.
	EagerCleanup bool
	// MaxParallel bounds concurrently executing jobs; zero means unbounded.
	MaxParallel int64
	Recorder    Recorder
	Logger      *slog.Logger
}

// Executor is the pipeline: stage, compile, run, classify.
type Executor struct {
	langs    Resolver
	store    Stager
	eager    bool
	sem      *semaphore.Weighted
	recorder Recorder
	logger   *slog.Logger
}

func NewExecutor(langs Resolver, store Stager, opts Options) *Executor {
	e := &Executor{
		langs:    langs,
		store:    store,
		eager:    opts.EagerCleanup,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if opts.MaxParallel > 0 {
		e.sem = semaphore.NewWeighted(opts.MaxParallel)
	}
	return e
}

// Submit runs one submission to completion. It returns an error only for
// input rejected before any work (ErrInvalidInput, ErrUnsupportedLanguage)
// or when ctx ends while waiting for a slot; every other failure is an
// outcome.
func (e *Executor) Submit(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionOutcome, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, fmt.Errorf("%w: source code is required", model.ErrInvalidInput)
	}
	adapter, err := e.langs.Resolve(req.Language)
	if err != nil {
		return nil, err
	}

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for execution slot: %w", err)
		}
		defer e.sem.Release(1)
	}

	spec := adapter.Spec()
	start := time.Now()

	var outcome *model.ExecutionOutcome
	src, err := e.store.Stage(spec.Name, spec.Tag, spec.Extension, req.Source)
	if err != nil {
		e.logger.Error("staging failed", "language", spec.Name, "error", err)
		outcome = infrastructure()
	} else {
		outcome = e.execute(ctx, adapter, src, []byte(req.Stdin))
		outcome.JobID = src.JobID
		if e.eager {
			if err := e.store.Remove(src); err != nil {
				e.logger.Warn("eager cleanup failed", "job_id", src.JobID, "error", err)
			}
		}
	}
	outcome.Language = spec.Name
	outcome.Duration = time.Since(start)

	e.logger.Info("job finished",
		"job_id", outcome.JobID,
		"language", outcome.Language,
		"status", outcome.Status,
		"duration", outcome.Duration,
	)
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, outcome); err != nil {
			e.logger.Warn("failed to record outcome", "job_id", outcome.JobID, "error", err)
		}
	}
	return outcome, nil
}

func (e *Executor) execute(ctx context.Context, adapter languages.Adapter, src *model.SourceArtifact, stdin []byte) *model.ExecutionOutcome {
	spec := adapter.Spec()
	log := e.logger.With("job_id", src.JobID, "language", spec.Name)

	build, err := adapter.Compile(ctx, src)
	if err != nil {
		if errors.Is(err, sandbox.ErrSpawnFailed) {
			log.Error("compiler could not be started", "error", err)
			return compilerUnavailable()
		}
		log.Error("compile phase failed", "error", err)
		return infrastructure()
	}
	if build.Failed() {
		return classifyCompile(build.Result, spec.CompileTimeout)
	}

	res, err := adapter.Run(ctx, src, build, stdin)
	if err != nil {
		log.Error("run phase failed", "error", err)
	}
	return classifyRun(res, err, spec.RunTimeout)
}
