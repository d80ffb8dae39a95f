package service

import (
	"context"
	"sync"
)

// Handle is a cancellable claim on one running job.
type Handle struct {
	cancel context.CancelFunc
}

// NewHandle wraps a context cancel function.
func NewHandle(cancel context.CancelFunc) *Handle {
	return &Handle{cancel: cancel}
}

// Cancel stops the job guarded by this handle. Safe to call more than once.
func (h *Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Coordinator tracks the single job the caller currently considers active and
// can cancel via user action. This is not the dedup registry: the registry
// tracks every job id under poll, including background-recovered ones the
// caller never started.
type Coordinator struct {
	mu     sync.Mutex
	active *Handle
}

// NewCoordinator creates a Coordinator with no active handle.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// SetActive makes h the active handle. A previously active handle is
// cancelled first: starting a new job always supersedes the old one.
func (c *Coordinator) SetActive(h *Handle) {
	c.mu.Lock()
	prev := c.active
	c.active = h
	c.mu.Unlock()

	if prev != nil && prev != h {
		prev.Cancel()
	}
}

// CancelActive cancels and clears the active handle. No-op when none is
// active.
func (c *Coordinator) CancelActive() {
	c.mu.Lock()
	h := c.active
	c.active = nil
	c.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
}

// Release clears h without cancelling it, but only while h is still the
// active handle. A job that resolved on its own calls this so it does not
// drop a newer job's handle.
func (c *Coordinator) Release(h *Handle) {
	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.mu.Unlock()
}
