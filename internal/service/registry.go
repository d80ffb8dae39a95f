package service

import "sync"

// Registry is the process-wide set of job ids currently under poll. Between a
// winning Register and the matching Unregister, exactly one poller owns the
// job id; any second caller must observe the registration and skip, so two
// loops never consume the same job's progress or double-publish its terminal
// event.
type Registry struct {
	mu      sync.Mutex
	polling map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{polling: make(map[string]struct{})}
}

// Register attempts to claim jobID for polling. It returns false when another
// poller already owns it. The check and the set are one atomic step.
func (r *Registry) Register(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.polling[jobID]; ok {
		return false
	}
	r.polling[jobID] = struct{}{}
	return true
}

// Unregister releases jobID. Releasing an unclaimed id is a no-op.
func (r *Registry) Unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.polling, jobID)
}

// IsPolling reports whether jobID is currently claimed.
func (r *Registry) IsPolling(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.polling[jobID]
	return ok
}
