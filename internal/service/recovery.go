package service

import (
	"context"
	"errors"
	"time"

	"jobwatch/internal/core/domain"
)

// Recover reconciles the backend's active-job list with locally persisted
// records, resolves each job, and resumes polling for anything still in
// flight. It is meant to run once, at application start.
//
// Server-reported jobs take merge precedence: an id the server still lists is
// certainly active, while a purely local record may already be resolved
// server-side. Failures are isolated per job; one job's status check erroring
// never aborts the rest.
func (e *Engine) Recover(ctx context.Context) error {
	defer e.markReady()

	serverJobs, err := e.client.ActiveJobs(ctx)
	if err != nil {
		// Local records can still be reconciled.
		e.logger.Printf("recovery: active-job listing failed: %v", err)
	}

	localJobs, err := e.store.List(ctx)
	if err != nil {
		e.logger.Printf("recovery: local job listing failed: %v", err)
	}

	local := make(map[string]domain.JobRecord, len(localJobs))
	for _, rec := range localJobs {
		local[rec.JobID] = rec
	}

	seen := make(map[string]struct{})
	var work []domain.JobRecord

	for _, active := range serverJobs {
		if _, ok := seen[active.JobID]; ok {
			continue
		}
		seen[active.JobID] = struct{}{}

		rec := domain.JobRecord{
			JobID:     active.JobID,
			URL:       active.URL,
			Platform:  domain.DetectPlatform(active.URL),
			StartTime: time.Now().UTC(),
			LastCheck: time.Now().UTC(),
		}
		// The local record only contributes what the server cannot know.
		if prev, ok := local[active.JobID]; ok {
			rec.ItemID = prev.ItemID
			rec.StartTime = prev.StartTime
		}
		work = append(work, rec)
	}

	for _, rec := range localJobs {
		if _, ok := seen[rec.JobID]; ok {
			continue
		}
		seen[rec.JobID] = struct{}{}
		work = append(work, rec)
	}

	if len(work) > 0 {
		e.logger.Printf("recovery: reconciling %d job(s)", len(work))
	}
	for _, rec := range work {
		e.recoverJob(ctx, rec)
	}
	return nil
}

func (e *Engine) recoverJob(ctx context.Context, rec domain.JobRecord) {
	status, err := e.client.FetchStatus(ctx, rec.JobID)
	if err != nil {
		// Possibly a temporary network issue, not evidence the job is
		// gone. Leave the record for the next pass.
		e.logger.Printf("[JOB %s] recovery status check failed, keeping record: %v", rec.JobID, err)
		return
	}

	switch status.Status {
	case domain.StateCompleted:
		e.removeRecord(ctx, rec.JobID)
		e.publishRecovered(rec, domain.StateCompleted)
		e.archiveResult(&rec, status)
		e.bus.Publish(domain.Event{
			Kind:      domain.EventCompleted,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Progress:  100,
			Result:    status.Result,
			Timestamp: time.Now().UTC(),
		})
		if e.refresh != nil && (rec.ItemID != "" || rec.URL != "") {
			e.refresh(rec.ItemID, rec.URL)
		}
		e.logger.Printf("[JOB %s] finished while away, resolved as completed", rec.JobID)

	case domain.StateFailed:
		e.removeRecord(ctx, rec.JobID)
		e.publishRecovered(rec, domain.StateFailed)
		e.bus.Publish(domain.Event{
			Kind:      domain.EventFailed,
			JobID:     rec.JobID,
			URL:       rec.URL,
			Error:     status.Error,
			Timestamp: time.Now().UTC(),
		})
		e.logger.Printf("[JOB %s] finished while away, resolved as failed: %s", rec.JobID, status.Error)

	default:
		if !e.registry.Register(rec.JobID) {
			// Someone is already watching this job.
			return
		}
		if err := e.store.Save(ctx, &rec); err != nil {
			e.logger.Printf("[JOB %s] failed to persist recovered record: %v", rec.JobID, err)
		}
		e.publishRecovered(rec, status.Status)
		e.logger.Printf("[JOB %s] still %s, resuming poll", rec.JobID, status.Status)

		resumed := rec
		go func() {
			if _, err := e.watch(ctx, &resumed); err != nil && !errors.Is(err, domain.ErrCancelled) {
				e.logger.Printf("[JOB %s] resumed poll ended: %v", resumed.JobID, err)
			}
		}()
	}
}

func (e *Engine) publishRecovered(rec domain.JobRecord, state domain.JobState) {
	e.bus.Publish(domain.Event{
		Kind:            domain.EventRecovered,
		JobID:           rec.JobID,
		URL:             rec.URL,
		RecoveredStatus: state,
		Timestamp:       time.Now().UTC(),
	})
}
