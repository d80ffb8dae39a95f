package service

import (
	"context"
	"log"
	"os"
	"time"

	"jobwatch/internal/core/domain"
	"jobwatch/internal/core/ports"
)

const (
	// DefaultPollInterval is the pause between status checks.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxAttempts caps the number of status checks per job. With the
	// default interval this is a ten-minute watching budget.
	DefaultMaxAttempts = 120
)

// ProgressFunc receives each non-terminal status observed by the poller.
type ProgressFunc func(status *domain.JobStatus)

// Poller drives repeated status checks for one job id until a terminal
// state, cancellation, or attempt-budget exhaustion.
type Poller struct {
	client      ports.StatusClient
	store       ports.Store
	logger      *log.Logger
	interval    time.Duration
	maxAttempts int
}

// NewPoller creates a Poller. Zero interval and maxAttempts fall back to the
// defaults; a nil logger falls back to stderr.
func NewPoller(client ports.StatusClient, store ports.Store, logger *log.Logger, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Poller{
		client:      client,
		store:       store,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Poll watches jobID until it resolves. The caller must have won the registry
// claim for jobID before calling, and keeps it: the claim is released by the
// caller's terminal bookkeeping, not here, so the job never looks unwatched
// while its record is still settling.
//
// Cancellation is cooperative: the context is consulted before each status
// check, never mid-request, and a result that arrives after cancellation is
// discarded. A transient fetch error is retried silently but still consumes
// one attempt, so a network outage eventually exhausts the budget.
func (p *Poller) Poll(ctx context.Context, jobID string, onProgress ProgressFunc) (*domain.JobStatus, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}

		status, err := p.client.FetchStatus(ctx, jobID)
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		if err != nil {
			p.logger.Printf("[JOB %s] status check %d/%d failed: %v", jobID, attempt, p.maxAttempts, err)
			if attempt < p.maxAttempts && !p.sleep(ctx) {
				return nil, domain.ErrCancelled
			}
			continue
		}

		switch status.Status {
		case domain.StateCompleted:
			return status, nil
		case domain.StateFailed:
			return status, &domain.JobFailedError{JobID: jobID, Message: status.Error}
		}

		if onProgress != nil {
			onProgress(status)
		}
		if err := p.store.Touch(ctx, jobID); err != nil {
			p.logger.Printf("[JOB %s] failed to record last check: %v", jobID, err)
		}

		if attempt < p.maxAttempts && !p.sleep(ctx) {
			return nil, domain.ErrCancelled
		}
	}

	return nil, &domain.TimeoutError{JobID: jobID, Attempts: p.maxAttempts}
}

func (p *Poller) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.interval):
		return true
	}
}
