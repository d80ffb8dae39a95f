package ports

import (
	"context"
	"encoding/json"

	"jobwatch/internal/core/domain"
)

// Store persists job records across process restarts. It is pure data access:
// lifecycle decisions (when a record is created or removed) belong to the
// engine.
type Store interface {
	// Save upserts a record by job id.
	Save(ctx context.Context, rec *domain.JobRecord) error

	// Get returns the record for jobID, or (nil, nil) when absent.
	Get(ctx context.Context, jobID string) (*domain.JobRecord, error)

	// GetByURL returns the first record for url, or (nil, nil) when absent.
	// Used to detect an already-running job before starting a duplicate.
	GetByURL(ctx context.Context, url string) (*domain.JobRecord, error)

	// List returns all records. Callers may sort by StartTime.
	List(ctx context.Context) ([]domain.JobRecord, error)

	// Remove deletes the record for jobID. Idempotent.
	Remove(ctx context.Context, jobID string) error

	// Touch updates the record's last-check time to now. Best effort.
	Touch(ctx context.Context, jobID string) error
}

// StatusClient is the request/response boundary to the remote analysis
// service.
type StatusClient interface {
	// StartJob submits url for analysis and returns the job id issued by
	// the service. A *domain.SubmissionError means no job was created.
	StartJob(ctx context.Context, url string) (string, error)

	// FetchStatus returns the current status of a job. A
	// *domain.StatusFetchError is transient and retryable; it is not the
	// same as the service reporting the job itself as failed.
	FetchStatus(ctx context.Context, jobID string) (*domain.JobStatus, error)

	// ActiveJobs lists the jobs the backend still considers active for
	// this client identity. Used only by recovery.
	ActiveJobs(ctx context.Context) ([]domain.ActiveJob, error)
}

// ResultArchive persists completed-analysis artifacts for offline
// inspection.
type ResultArchive interface {
	// InitJob creates the job directory structure.
	InitJob(ctx context.Context, jobID string) error

	// SaveInput snapshots the job record as submitted.
	SaveInput(ctx context.Context, rec *domain.JobRecord) error

	// SaveResult saves the raw analysis result without modification.
	SaveResult(ctx context.Context, rec *domain.JobRecord, result json.RawMessage) error

	// JobPath returns the filesystem path for a given job ID.
	JobPath(jobID string) string
}
