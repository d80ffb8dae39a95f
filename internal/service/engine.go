package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"jobwatch/internal/core/domain"
	"jobwatch/internal/core/ports"
)

// RefreshFunc is called when a recovered job turns out to have completed
// while no caller was watching, so the item it belongs to can refresh its
// state.
type RefreshFunc func(itemID, url string)

// Config wires an Engine. Client and Store are required; everything else has
// a working default.
type Config struct {
	Client      ports.StatusClient
	Store       ports.Store
	Archive     ports.ResultArchive
	Logger      *log.Logger
	Interval    time.Duration
	MaxAttempts int
	RefreshItem RefreshFunc
}

// Engine owns the lifecycle of analysis jobs: it starts them, polls them to a
// terminal state, deduplicates concurrent watchers, survives restarts via the
// recovery pass, and broadcasts outcomes on its bus.
type Engine struct {
	client   ports.StatusClient
	store    ports.Store
	archive  ports.ResultArchive
	registry *Registry
	coord    *Coordinator
	bus      *Bus
	poller   *Poller
	logger   *log.Logger
	refresh  RefreshFunc

	readyOnce sync.Once
	ready     chan struct{}
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	registry := NewRegistry()
	return &Engine{
		client:   cfg.Client,
		store:    cfg.Store,
		archive:  cfg.Archive,
		registry: registry,
		coord:    NewCoordinator(),
		bus:      NewBus(logger),
		poller:   NewPoller(cfg.Client, cfg.Store, logger, cfg.Interval, cfg.MaxAttempts),
		logger:   logger,
		refresh:  cfg.RefreshItem,
		ready:    make(chan struct{}),
	}
}

// Bus returns the engine's event bus for subscriptions.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// StartJob submits url for analysis and watches the job until it resolves.
// itemID optionally ties the job to a higher-level saved item. The job this
// call starts becomes the active one: a previous active job is cancelled.
//
// The returned error distinguishes *domain.SubmissionError (nothing was
// started), domain.ErrDuplicateJob (url already has an active job),
// *domain.JobFailedError, *domain.TimeoutError, and domain.ErrCancelled.
func (e *Engine) StartJob(ctx context.Context, url, itemID string) (*domain.JobStatus, error) {
	if existing, err := e.store.GetByURL(ctx, url); err != nil {
		e.logger.Printf("existing-job lookup failed for %s: %v", url, err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrDuplicateJob, existing.JobID)
	}

	jobID, err := e.client.StartJob(ctx, url)
	if err != nil {
		return nil, err
	}
	e.logger.Printf("[JOB %s] started for URL: %s", jobID, url)

	now := time.Now().UTC()
	rec := &domain.JobRecord{
		JobID:     jobID,
		URL:       url,
		Platform:  domain.DetectPlatform(url),
		ItemID:    itemID,
		StartTime: now,
		LastCheck: now,
	}
	if err := e.store.Save(ctx, rec); err != nil {
		// persistence degraded; the in-memory loop continues regardless
		e.logger.Printf("[JOB %s] failed to persist record: %v", jobID, err)
	}
	e.archiveInput(rec)

	if !e.registry.Register(jobID) {
		// Lost the claim: the service re-issued an id someone is already
		// watching. Remove the record saved above so it is not orphaned.
		e.removeRecord(ctx, jobID)
		return nil, fmt.Errorf("%w: job %s", domain.ErrDuplicateJob, jobID)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := NewHandle(cancel)
	e.coord.SetActive(handle)
	defer e.coord.Release(handle)

	return e.watch(pollCtx, rec)
}

// CancelJob cancels the active job, if any. The cancelled poll resolves with
// domain.ErrCancelled.
func (e *Engine) CancelJob() {
	e.coord.CancelActive()
}

// CheckForExistingJob reports the persisted job for url, if any, and whether
// a poller is already watching it. Callers finding an already-watched job
// should attach via the bus instead of starting a second poll.
func (e *Engine) CheckForExistingJob(ctx context.Context, url string) (*domain.JobRecord, bool, error) {
	rec, err := e.store.GetByURL(ctx, url)
	if err != nil || rec == nil {
		return nil, false, err
	}
	return rec, e.registry.IsPolling(rec.JobID), nil
}

// WaitReady blocks until the recovery pass has finished, so callers can wait
// for "we know what's still running" before rendering their own state.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watch runs the poll loop for rec and applies the terminal bookkeeping. The
// registry claim for rec.JobID must already be held; watch releases it after
// the store is settled and before the terminal event goes out, so a watcher
// checking "exists but unwatched" never sees a half-finished job.
func (e *Engine) watch(ctx context.Context, rec *domain.JobRecord) (*domain.JobStatus, error) {
	onProgress := func(status *domain.JobStatus) {
		e.bus.Publish(domain.Event{
			Kind:      domain.EventProgress,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Progress:  status.Progress,
			Timestamp: time.Now().UTC(),
		})
	}

	status, err := e.poller.Poll(ctx, rec.JobID, onProgress)

	// Terminal bookkeeping must run even when the poll context is already
	// cancelled, so it gets a fresh context.
	cleanupCtx := context.Background()

	var jobFailed *domain.JobFailedError
	var timedOut *domain.TimeoutError
	switch {
	case err == nil:
		e.removeRecord(cleanupCtx, rec.JobID)
		e.archiveResult(rec, status)
		e.registry.Unregister(rec.JobID)
		e.bus.Publish(domain.Event{
			Kind:      domain.EventCompleted,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Progress:  100,
			Result:    status.Result,
			Timestamp: time.Now().UTC(),
		})
		e.logger.Printf("[JOB %s] completed", rec.JobID)
		return status, nil

	case errors.As(err, &jobFailed):
		e.removeRecord(cleanupCtx, rec.JobID)
		e.registry.Unregister(rec.JobID)
		e.bus.Publish(domain.Event{
			Kind:      domain.EventFailed,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Error:     jobFailed.Message,
			Timestamp: time.Now().UTC(),
		})
		e.logger.Printf("[JOB %s] failed: %s", rec.JobID, jobFailed.Message)
		return nil, err

	case errors.Is(err, domain.ErrCancelled):
		e.removeRecord(cleanupCtx, rec.JobID)
		e.registry.Unregister(rec.JobID)
		e.bus.Publish(domain.Event{
			Kind:      domain.EventCancelled,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Timestamp: time.Now().UTC(),
		})
		e.logger.Printf("[JOB %s] cancelled", rec.JobID)
		return nil, err

	case errors.As(err, &timedOut):
		// The job may still be running server-side. Keep the record so the
		// next recovery pass can pick it up.
		e.registry.Unregister(rec.JobID)
		e.bus.Publish(domain.Event{
			Kind:      domain.EventFailed,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		})
		e.logger.Printf("[JOB %s] gave up watching after %d checks", rec.JobID, timedOut.Attempts)
		return nil, err

	default:
		e.registry.Unregister(rec.JobID)
		return nil, err
	}
}

func (e *Engine) removeRecord(ctx context.Context, jobID string) {
	if err := e.store.Remove(ctx, jobID); err != nil {
		e.logger.Printf("[JOB %s] failed to remove record: %v", jobID, err)
	}
}

func (e *Engine) archiveInput(rec *domain.JobRecord) {
	if e.archive == nil {
		return
	}
	ctx := context.Background()
	if err := e.archive.InitJob(ctx, rec.JobID); err != nil {
		e.logger.Printf("[JOB %s] failed to init archive: %v", rec.JobID, err)
		return
	}
	if err := e.archive.SaveInput(ctx, rec); err != nil {
		e.logger.Printf("[JOB %s] failed to archive input: %v", rec.JobID, err)
	}
}

func (e *Engine) archiveResult(rec *domain.JobRecord, status *domain.JobStatus) {
	if e.archive == nil || len(status.Result) == 0 {
		return
	}
	ctx := context.Background()
	if err := e.archive.InitJob(ctx, rec.JobID); err != nil {
		e.logger.Printf("[JOB %s] failed to init archive: %v", rec.JobID, err)
		return
	}
	if err := e.archive.SaveResult(ctx, rec, status.Result); err != nil {
		e.logger.Printf("[JOB %s] failed to archive result: %v", rec.JobID, err)
	}
}

func (e *Engine) markReady() {
	e.readyOnce.Do(func() { close(e.ready) })
}
