package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sudankdk/judge/internal/model"
)

var ErrNotFound = errors.New("submission not found")

// Submission is one recorded execution outcome.
type Submission struct {
	JobID      string       `json:"job_id"`
	Language   string       `json:"language"`
	Status     model.Status `json:"status"`
	ExitCode   *int         `json:"exit_code,omitempty"`
	Stdout     string       `json:"stdout"`
	Stderr     string       `json:"stderr"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	Truncated  bool         `json:"truncated"`
	DurationMS int64        `json:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at"`
}

// FromOutcome snapshots an outcome for persistence.
func FromOutcome(o *model.ExecutionOutcome) *Submission {
	return &Submission{
		JobID:      o.JobID,
		Language:   o.Language,
		Status:     o.Status,
		ExitCode:   o.ExitCode,
		Stdout:     o.Stdout,
		Stderr:     o.Stderr,
		Diagnostic: o.Diagnostic,
		Truncated:  o.Truncated,
		DurationMS: o.Duration.Milliseconds(),
	}
}

// ListOptions controls filtering and pagination for List.
type ListOptions struct {
	Language string
	Status   model.Status
	Limit    int
	Offset   int
}

// Store is the persistence interface for submission history.
type Store interface {
	// Record inserts an outcome. Outcomes without a job id are skipped.
	Record(ctx context.Context, o *model.ExecutionOutcome) error

	// Get returns a submission by job id or unambiguous id prefix.
	Get(ctx context.Context, id string) (*Submission, error)

	// List returns submissions ordered by created_at descending.
	List(ctx context.Context, opts ListOptions) ([]Submission, error)

	// Prune deletes submissions created before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
