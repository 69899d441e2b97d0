package model

// Response is the wire form of an ExecutionOutcome.
type Response struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Stderr   string `json:"stderr"`
	Error    string `json:"error,omitempty"`
	JobID    string `json:"job_id,omitempty"`
	Language string `json:"language,omitempty"`
	Status   Status `json:"status"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

func (o *ExecutionOutcome) Response() Response {
	r := Response{
		Success:  o.Success(),
		Output:   o.Output(),
		Stderr:   o.Stderr,
		JobID:    o.JobID,
		Language: o.Language,
		Status:   o.Status,
		ExitCode: o.ExitCode,
	}
	if !r.Success {
		r.Error = o.Diagnostic
	}
	return r
}
