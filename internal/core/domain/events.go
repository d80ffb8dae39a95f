package domain

import (
	"encoding/json"
	"time"
)

// EventKind discriminates job lifecycle events on the bus.
type EventKind string

const (
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventRecovered EventKind = "recovered"
)

// Event is broadcast when a job makes progress or resolves. Events are
// ephemeral: nothing buffers them for listeners that subscribe late.
type Event struct {
	Kind            EventKind       `json:"kind"`
	JobID           string          `json:"job_id"`
	URL             string          `json:"url"`
	Progress        int             `json:"progress,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	RecoveredStatus JobState        `json:"recovered_status,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}
