package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// JobRecord is the locally persisted view of one in-flight analysis job.
// Records exist only while the client believes the job is still running;
// observing a terminal status removes them.
type JobRecord struct {
	JobID     string    `json:"job_id"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	ItemID    string    `json:"item_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	LastCheck time.Time `json:"last_check"`
}

// JobState is the remote service's view of a job.
type JobState string

const (
	StateQueued     JobState = "queued"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Terminal reports whether no further polling should happen for this state.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobStatus is the live status fetched from the analysis service. It is never
// persisted. Result is kept as raw JSON to preserve the exact API response
// without data loss.
type JobStatus struct {
	Status   JobState        `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ActiveJob is one entry of the backend's active-job listing, consumed during
// startup recovery.
type ActiveJob struct {
	JobID string `json:"jobId"`
	URL   string `json:"url"`
}

// DetectPlatform guesses the content platform from the URL.
func DetectPlatform(rawURL string) string {
	lowerURL := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lowerURL, "twitter.com"), strings.Contains(lowerURL, "x.com"):
		return "x"
	case strings.Contains(lowerURL, "instagram.com"):
		return "instagram"
	case strings.Contains(lowerURL, "tiktok.com"):
		return "tiktok"
	case strings.Contains(lowerURL, "youtube.com"), strings.Contains(lowerURL, "youtu.be"):
		return "youtube"
	default:
		return "unknown"
	}
}
