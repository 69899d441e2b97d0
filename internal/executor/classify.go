package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// InfrastructureMessage is all a caller learns about an infrastructure fault.
const InfrastructureMessage = "internal execution error"

func exitCode(code int) *int {
	return &code
}

// classifyCompile turns a rejected build into a CompileError outcome.
func classifyCompile(res *sandbox.Result, limit time.Duration) *model.ExecutionOutcome {
	diag := strings.TrimSpace(string(res.Stderr))
	if diag == "" {
		diag = strings.TrimSpace(string(res.Stdout))
	}
	if res.TimedOut {
		msg := fmt.Sprintf("compilation exceeded the %s time limit", limit)
		if diag != "" {
			msg += "\n" + diag
		}
		diag = msg
	}
	if diag == "" {
		diag = "compilation failed"
	}

	o := &model.ExecutionOutcome{
		Status:     model.StatusCompileError,
		Stderr:     string(res.Stderr),
		Diagnostic: diag,
		Truncated:  res.Truncated,
	}
	if !res.TimedOut {
		o.ExitCode = exitCode(res.ExitCode)
	}
	return o
}

// compilerUnavailable is the CompileError for a compiler that could not be
// started; the underlying error is logged, not shown.
func compilerUnavailable() *model.ExecutionOutcome {
	return &model.ExecutionOutcome{
		Status:     model.StatusCompileError,
		Diagnostic: "compilation failed: compiler could not be started",
	}
}

func infrastructure() *model.ExecutionOutcome {
	return &model.ExecutionOutcome{
		Status:     model.StatusInfrastructureError,
		Diagnostic: InfrastructureMessage,
	}
}

// classifyRun maps a run phase result to an outcome. A run error always means
// the program never ran to completion for reasons outside its control.
func classifyRun(res *sandbox.Result, err error, limit time.Duration) *model.ExecutionOutcome {
	if err != nil || res == nil {
		return infrastructure()
	}

	o := &model.ExecutionOutcome{
		Stdout:    string(res.Stdout),
		Stderr:    string(res.Stderr),
		Truncated: res.Truncated,
	}
	switch {
	case res.TimedOut:
		o.Status = model.StatusTimeout
		o.Diagnostic = fmt.Sprintf("time limit of %s exceeded", limit)
	case res.ExitCode == 0:
		o.Status = model.StatusSuccess
		o.ExitCode = exitCode(0)
	default:
		o.Status = model.StatusRuntimeError
		o.ExitCode = exitCode(res.ExitCode)
		o.Diagnostic = strings.TrimSpace(o.Stderr)
		if o.Diagnostic == "" {
			o.Diagnostic = fmt.Sprintf("process exited with code %d", res.ExitCode)
		}
	}
	return o
}
