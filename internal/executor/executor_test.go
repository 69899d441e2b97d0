package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudankdk/judge/internal/languages"
	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

type stubAdapter struct {
	mu         sync.Mutex
	spec       languages.Spec
	compileErr error
	build      *languages.Build
	runRes     *sandbox.Result
	runErr     error
	ran        bool
	gotStdin   []byte
	runHook    func()
}

func (a *stubAdapter) Spec() languages.Spec { return a.spec }

func (a *stubAdapter) Compile(ctx context.Context, src *model.SourceArtifact) (*languages.Build, error) {
	if a.compileErr != nil {
		return nil, a.compileErr
	}
	if a.build != nil {
		return a.build, nil
	}
	return &languages.Build{Skipped: true}, nil
}

func (a *stubAdapter) Run(ctx context.Context, src *model.SourceArtifact, build *languages.Build, stdin []byte) (*sandbox.Result, error) {
	a.mu.Lock()
	a.ran = true
	a.gotStdin = stdin
	a.mu.Unlock()
	if a.runHook != nil {
		a.runHook()
	}
	return a.runRes, a.runErr
}

type stubResolver struct {
	adapter languages.Adapter
}

func (r stubResolver) Resolve(token string) (languages.Adapter, error) {
	if token != r.adapter.Spec().Name {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedLanguage, token)
	}
	return r.adapter, nil
}

type stubStager struct {
	mu       sync.Mutex
	stageErr error
	staged   int
	removed  []string
}

func (s *stubStager) Stage(language, tag, ext, source string) (*model.SourceArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stageErr != nil {
		return nil, s.stageErr
	}
	s.staged++
	id := fmt.Sprintf("job-%d", s.staged)
	return &model.SourceArtifact{JobID: id, Language: language, Tag: tag, Dir: "/tmp/" + tag, Path: "/tmp/" + tag + "/" + id + "." + ext}, nil
}

func (s *stubStager) Remove(src *model.SourceArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, src.JobID)
	return nil
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []*model.ExecutionOutcome
	err      error
}

func (r *memRecorder) Record(ctx context.Context, o *model.ExecutionOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.err
}

func pySpec() languages.Spec {
	return languages.Spec{Name: "python", Kind: model.KindInterpreted, Tag: "py", Extension: "py", RunTimeout: 10 * time.Second}
}

func cppSpec() languages.Spec {
	return languages.Spec{Name: "cpp", Kind: model.KindNative, Tag: "cpp", Extension: "cpp", CompileTimeout: 8 * time.Second, RunTimeout: 6 * time.Second}
}

func TestSubmitRejectsEmptySourceBeforeStaging(t *testing.T) {
	st := &stubStager{}
	e := NewExecutor(stubResolver{&stubAdapter{spec: pySpec()}}, st, Options{})

	for _, src := range []string{"", "  \n\t"} {
		_, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: src})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	}
	assert.Zero(t, st.staged)
}

func TestSubmitRejectsUnknownLanguageBeforeStaging(t *testing.T) {
	st := &stubStager{}
	e := NewExecutor(stubResolver{&stubAdapter{spec: pySpec()}}, st, Options{})

	_, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "rust", Source: "fn main() {}"})
	assert.ErrorIs(t, err, model.ErrUnsupportedLanguage)
	assert.Zero(t, st.staged)
}

func TestSubmitSuccess(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{Stdout: []byte("7\n")}}
	rec := &memRecorder{}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{Recorder: rec})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "print(7)", Stdin: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.Equal(t, "7", out.Output())
	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, "python", out.Language)
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 0, *out.ExitCode)
	assert.Equal(t, []byte("x"), a.gotStdin)
	require.Len(t, rec.outcomes, 1)
	assert.Same(t, out, rec.outcomes[0])
}

func TestSubmitStagingFailureIsInfrastructure(t *testing.T) {
	a := &stubAdapter{spec: pySpec()}
	e := NewExecutor(stubResolver{a}, &stubStager{stageErr: fmt.Errorf("%w: disk full", model.ErrStaging)}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "print(1)"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInfrastructureError, out.Status)
	assert.Equal(t, InfrastructureMessage, out.Diagnostic)
	assert.NotContains(t, out.Diagnostic, "disk full")
	assert.False(t, a.ran)
}

func TestSubmitCompileFailureSkipsRun(t *testing.T) {
	a := &stubAdapter{
		spec: cppSpec(),
		build: &languages.Build{Result: &sandbox.Result{
			ExitCode: 1,
			Stderr:   []byte("job.cpp:1:1: error: expected ';'\n"),
		}},
	}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "cpp", Source: "int main() { return 0 }"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompileError, out.Status)
	assert.Contains(t, out.Diagnostic, "expected ';'")
	assert.False(t, a.ran)
	assert.False(t, out.Success())
}

func TestSubmitCompileTimeout(t *testing.T) {
	a := &stubAdapter{spec: cppSpec(), build: &languages.Build{Result: &sandbox.Result{TimedOut: true, ExitCode: 137}}}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "cpp", Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompileError, out.Status)
	assert.Contains(t, out.Diagnostic, "8s")
	assert.Nil(t, out.ExitCode)
}

func TestSubmitCompilerSpawnFailure(t *testing.T) {
	a := &stubAdapter{spec: cppSpec(), compileErr: fmt.Errorf("cpp compile: %w: g++: not found", sandbox.ErrSpawnFailed)}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "cpp", Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompileError, out.Status)
	assert.Contains(t, out.Diagnostic, "could not be started")
	assert.False(t, a.ran)
}

func TestSubmitCompilePhaseInfraError(t *testing.T) {
	a := &stubAdapter{spec: cppSpec(), compileErr: errors.New("copy failed")}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "cpp", Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInfrastructureError, out.Status)
}

func TestSubmitRuntimeError(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{ExitCode: 1, Stderr: []byte("ZeroDivisionError: division by zero\n")}}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "1/0"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRuntimeError, out.Status)
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 1, *out.ExitCode)
	assert.Contains(t, out.Diagnostic, "ZeroDivisionError")
}

func TestSubmitRuntimeErrorWithoutStderr(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{ExitCode: 3}}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "exit(3)"})
	require.NoError(t, err)
	assert.Equal(t, "process exited with code 3", out.Diagnostic)
}

func TestSubmitTimeoutKeepsPartialOutput(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{TimedOut: true, ExitCode: 137, Stdout: []byte("tick\n")}}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "while True: pass"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusTimeout, out.Status)
	assert.Equal(t, "tick", out.Output())
	assert.Nil(t, out.ExitCode)
	assert.Contains(t, out.Diagnostic, "10s")
}

func TestSubmitRunErrorIsInfrastructure(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runErr: fmt.Errorf("python run: %w: python3: not found", sandbox.ErrSpawnFailed)}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "print(1)"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInfrastructureError, out.Status)
	assert.Equal(t, InfrastructureMessage, out.Diagnostic)
}

func TestSubmitEagerCleanup(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{}}
	st := &stubStager{}
	e := NewExecutor(stubResolver{a}, st, Options{EagerCleanup: true})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "pass"})
	require.NoError(t, err)
	assert.Equal(t, []string{out.JobID}, st.removed)
}

func TestSubmitLeavesArtifactsByDefault(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{}}
	st := &stubStager{}
	e := NewExecutor(stubResolver{a}, st, Options{})

	_, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "pass"})
	require.NoError(t, err)
	assert.Empty(t, st.removed)
}

func TestSubmitRecorderFailureDoesNotChangeOutcome(t *testing.T) {
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{Stdout: []byte("ok")}}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{Recorder: &memRecorder{err: errors.New("db locked")}})

	out, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "print('ok')"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, out.Status)
}

func TestSubmitBoundsParallelism(t *testing.T) {
	var running, peak atomic.Int32
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{}}
	a.runHook = func() {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
	}
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{MaxParallel: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "pass"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSubmitSlotWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	a := &stubAdapter{spec: pySpec(), runRes: &sandbox.Result{}}
	a.runHook = func() { <-block }
	e := NewExecutor(stubResolver{a}, &stubStager{}, Options{MaxParallel: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Submit(context.Background(), model.ExecutionRequest{Language: "python", Source: "pass"})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Submit(ctx, model.ExecutionRequest{Language: "python", Source: "pass"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	<-done
}
