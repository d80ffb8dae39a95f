package resultarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jobwatch/internal/core/domain"
)

// Archive implements ports.ResultArchive on the local filesystem. Each job
// gets its own directory holding the submitted record, the raw result
// payload, and a small manifest describing what was archived.
type Archive struct {
	baseDir string
}

type manifest struct {
	JobID       string    `json:"job_id"`
	Platform    string    `json:"platform"`
	ArchivedAt  time.Time `json:"archived_at"`
	ResultBytes int       `json:"result_bytes"`
}

// New creates a new Archive rooted at baseDir.
func New(baseDir string) *Archive {
	return &Archive{baseDir: baseDir}
}

// InitJob ensures the job directory exists.
func (a *Archive) InitJob(ctx context.Context, jobID string) error {
	path := a.JobPath(jobID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create job directory %s: %w", path, err)
	}
	return nil
}

// SaveInput snapshots the job record as it was submitted.
func (a *Archive) SaveInput(ctx context.Context, rec *domain.JobRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job record: %w", err)
	}
	return a.write(rec.JobID, "input.json", data)
}

// SaveResult stores the raw result payload exactly as the service returned
// it, then stamps the manifest.
func (a *Archive) SaveResult(ctx context.Context, rec *domain.JobRecord, result json.RawMessage) error {
	if err := a.write(rec.JobID, "result_raw.json", result); err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest{
		JobID:       rec.JobID,
		Platform:    rec.Platform,
		ArchivedAt:  time.Now().UTC(),
		ResultBytes: len(result),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return a.write(rec.JobID, "manifest.json", data)
}

// JobPath returns the path for a job directory.
func (a *Archive) JobPath(jobID string) string {
	return filepath.Join(a.baseDir, "jobs", jobID)
}

func (a *Archive) write(jobID, name string, data []byte) error {
	path := filepath.Join(a.JobPath(jobID), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}
