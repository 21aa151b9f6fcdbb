package pipeline

import "fmt"

// Pipeline stages that can fail a job
const (
	StageLoad = "load"
	StageRun  = "run"
)

// JobError is the single job-level error surfaced to the caller
type JobError struct {
	JobID string
	Stage string
	Err   error
}

func (e *JobError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
