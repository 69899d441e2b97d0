package model

import (
	"strings"
	"time"
)

// Kind is the closed set of toolchain shapes a language can have.
type Kind string

const (
	KindNative      Kind = "native-compiled"
	KindBytecode    Kind = "bytecode-compiled"
	KindInterpreted Kind = "interpreted"
)

// Compiled reports whether the kind has a compile phase.
func (k Kind) Compiled() bool {
	return k == KindNative || k == KindBytecode
}

func (k Kind) Valid() bool {
	switch k {
	case KindNative, KindBytecode, KindInterpreted:
		return true
	}
	return false
}

type Status string

const (
	StatusSuccess             Status = "success"
	StatusCompileError        Status = "compile_error"
	StatusRuntimeError        Status = "runtime_error"
	StatusTimeout             Status = "timeout"
	StatusInfrastructureError Status = "infrastructure_error"
)

// CodeAttributable reports whether the status was caused by the submitted program.
func (s Status) CodeAttributable() bool {
	return s == StatusCompileError || s == StatusRuntimeError || s == StatusTimeout
}

// ExecutionRequest is one submission as received from a caller.
type ExecutionRequest struct {
	Language string
	Source   string
	Stdin    string
}

// SourceArtifact is a staged source file. It is never modified after staging.
type SourceArtifact struct {
	JobID    string
	Language string
	Tag      string
	Dir      string
	Path     string
	Bytes    int
}

// CompiledArtifact is the output of a compile phase: an executable file for
// native languages or a class directory for bytecode languages.
type CompiledArtifact struct {
	JobID string
	Path  string
	// Entry is the class to launch for bytecode languages.
	Entry string
}

// ExecutionOutcome is the single result of a submission.
type ExecutionOutcome struct {
	JobID      string
	Language   string
	Status     Status
	Stdout     string
	Stderr     string
	ExitCode   *int
	Diagnostic string
	Truncated  bool
	Duration   time.Duration
}

func (o *ExecutionOutcome) Success() bool {
	return o.Status == StatusSuccess
}

// Output is stdout with trailing whitespace removed.
func (o *ExecutionOutcome) Output() string {
	return strings.TrimRight(o.Stdout, " \t\r\n")
}
