package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"jobwatch/internal/core/domain"
)

const defaultStepEvery = 2 * time.Second

// Server is a local stand-in for the remote analysis service. It implements
// the same wire contract (POST /jobs, GET /jobs/{id}, GET /jobs/active) with
// simulated progress, plus a websocket feed per job id.
type Server struct {
	logger *slog.Logger
	router *chi.Mux

	stepEvery time.Duration

	mu   sync.RWMutex
	jobs map[string]*simJob
	subs map[string]map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
}

type simJob struct {
	ID        string
	URL       string
	Status    domain.JobState
	Progress  int
	Result    json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a Server. stepEvery controls how fast simulated jobs advance;
// zero means the default.
func New(logger *slog.Logger, stepEvery time.Duration) *Server {
	if stepEvery <= 0 {
		stepEvery = defaultStepEvery
	}

	s := &Server{
		logger:    logger,
		router:    chi.NewRouter(),
		stepEvery: stepEvery,
		jobs:      make(map[string]*simJob),
		subs:      make(map[string]map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.registerRoutes()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Post("/jobs", s.createJob)
	s.router.Get("/jobs/active", s.activeJobs)
	s.router.Get("/jobs/{id}", s.jobStatus)
	s.router.Get("/ws/{id}", s.jobWS)
	s.router.Get("/healthz", s.health)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	job := &simJob{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Status:    domain.StateQueued,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Info("job accepted", "job_id", job.ID, "url", req.URL)
	go s.runJob(job.ID)

	s.respondJSON(w, http.StatusCreated, map[string]string{"jobId": job.ID})
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	s.mu.RLock()
	job, ok := s.jobs[jobID]
	var status domain.JobStatus
	if ok {
		status = statusOf(job)
	}
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) activeJobs(w http.ResponseWriter, r *http.Request) {
	active := make([]domain.ActiveJob, 0)

	s.mu.RLock()
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			active = append(active, domain.ActiveJob{JobID: job.ID, URL: job.URL})
		}
	}
	s.mu.RUnlock()

	s.respondJSON(w, http.StatusOK, active)
}

func (s *Server) jobWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	s.mu.RLock()
	job, ok := s.jobs[jobID]
	var current domain.JobStatus
	if ok {
		current = statusOf(job)
	}
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.subs[jobID] == nil {
		s.subs[jobID] = make(map[*websocket.Conn]struct{})
	}
	s.subs[jobID][conn] = struct{}{}
	s.mu.Unlock()

	_ = conn.WriteJSON(current)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.subs[jobID], conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) broadcast(jobID string, status domain.JobStatus) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.subs[jobID]))
	for c := range s.subs[jobID] {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(status); err != nil {
			s.mu.Lock()
			delete(s.subs[jobID], c)
			s.mu.Unlock()
			_ = c.Close()
		}
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode json", "error", err)
	}
}

func statusOf(job *simJob) domain.JobStatus {
	return domain.JobStatus{
		Status:   job.Status,
		Progress: job.Progress,
		Result:   job.Result,
		Error:    job.Error,
	}
}

// CleanupLoop removes terminal jobs older than ttl every interval, until
// done is closed. Mirrors a real backend expiring finished work.
func (s *Server) CleanupLoop(done <-chan struct{}, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.cleanup(ttl)
			}
		}
	}()
}

func (s *Server) cleanup(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	removed := 0

	s.mu.Lock()
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("cleanup completed", "removed_jobs", removed)
	}
}

func fakeResult(url string) json.RawMessage {
	result := map[string]any{
		"text":      fmt.Sprintf("simulated transcription of %s", url),
		"sentiment": "positive",
		"topics":    []string{"demo", "analysis"},
		"platform":  domain.DetectPlatform(url),
	}
	data, _ := json.Marshal(result)
	return data
}
