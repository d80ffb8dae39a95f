package devserver

import (
	"strings"
	"time"

	"jobwatch/internal/core/domain"
)

const progressStep = 20

// runJob advances a job through queued → processing → terminal. URLs
// containing "fail" are failed at 40% so error paths can be exercised from a
// demo client.
func (s *Server) runJob(jobID string) {
	for {
		time.Sleep(s.stepEvery)

		s.mu.Lock()
		job, ok := s.jobs[jobID]
		if !ok || job.Status.Terminal() {
			s.mu.Unlock()
			return
		}

		job.Status = domain.StateProcessing
		job.Progress += progressStep
		job.UpdatedAt = time.Now().UTC()

		if strings.Contains(job.URL, "fail") && job.Progress >= 40 {
			job.Status = domain.StateFailed
			job.Error = "simulated analysis failure"
		} else if job.Progress >= 100 {
			job.Progress = 100
			job.Status = domain.StateCompleted
			job.Result = fakeResult(job.URL)
		}

		status := statusOf(job)
		terminal := job.Status.Terminal()
		s.mu.Unlock()

		s.broadcast(jobID, status)

		if terminal {
			s.logger.Info("job resolved", "job_id", jobID, "status", status.Status)
			return
		}
	}
}
