package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a poll stopped by user or system cancellation. It is
// distinct from JobFailedError so callers can show "stopped" rather than
// "error" messaging.
var ErrCancelled = errors.New("job cancelled")

// ErrDuplicateJob is returned when a URL already has an active job.
var ErrDuplicateJob = errors.New("an active job already exists for this url")

// SubmissionError reports that starting a job failed. No job record exists
// when it is returned.
type SubmissionError struct {
	URL string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit %s: %v", e.URL, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusFetchError is a transient transport failure while checking job
// status. The poller retries these within its attempt budget.
type StatusFetchError struct {
	JobID string
	Err   error
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("failed to fetch status for job %s: %v", e.JobID, e.Err)
}

func (e *StatusFetchError) Unwrap() error { return e.Err }

// JobFailedError means the analysis service explicitly reported the job as
// failed. Terminal.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// TimeoutError means the attempt budget ran out without a terminal status.
// The job may still be running server-side; the client simply gave up
// watching it.
type TimeoutError struct {
	JobID    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s still not finished after %d status checks", e.JobID, e.Attempts)
}
