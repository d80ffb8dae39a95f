package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"jobwatch/internal/core/domain"
)

// fakeClient serves scripted status sequences per job id. The last step of a
// script repeats forever.
type fakeClient struct {
	mu         sync.Mutex
	nextIDs    []string
	startErr   error
	active     []domain.ActiveJob
	activeErr  error
	scripts    map[string][]statusStep
	fetchCount map[string]int
}

type statusStep struct {
	status *domain.JobStatus
	err    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		scripts:    make(map[string][]statusStep),
		fetchCount: make(map[string]int),
	}
}

func (f *fakeClient) script(jobID string, steps ...statusStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[jobID] = steps
}

func (f *fakeClient) StartJob(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	if len(f.nextIDs) == 0 {
		return "", &domain.SubmissionError{URL: url, Err: errors.New("no job id scripted")}
	}
	id := f.nextIDs[0]
	f.nextIDs = f.nextIDs[1:]
	return id, nil
}

func (f *fakeClient) FetchStatus(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCount[jobID]++
	steps := f.scripts[jobID]
	if len(steps) == 0 {
		return nil, &domain.StatusFetchError{JobID: jobID, Err: errors.New("no status scripted")}
	}
	step := steps[0]
	if len(steps) > 1 {
		f.scripts[jobID] = steps[1:]
	}
	if step.err != nil {
		return nil, step.err
	}
	status := *step.status
	return &status, nil
}

func (f *fakeClient) ActiveJobs(ctx context.Context) ([]domain.ActiveJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.activeErr
}

func (f *fakeClient) fetches(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCount[jobID]
}

func processing(progress int) statusStep {
	return statusStep{status: &domain.JobStatus{Status: domain.StateProcessing, Progress: progress}}
}

func completed(result string) statusStep {
	return statusStep{status: &domain.JobStatus{
		Status:   domain.StateCompleted,
		Progress: 100,
		Result:   json.RawMessage(result),
	}}
}

func failed(message string) statusStep {
	return statusStep{status: &domain.JobStatus{Status: domain.StateFailed, Error: message}}
}

func fetchError(jobID string) statusStep {
	return statusStep{err: &domain.StatusFetchError{JobID: jobID, Err: errors.New("connection refused")}}
}

// memStore is an in-memory ports.Store for tests. The err fields make the
// corresponding operation fail, for exercising degraded-persistence paths.
type memStore struct {
	mu        sync.Mutex
	records   map[string]domain.JobRecord
	touches   map[string]int
	saveErr   error
	touchErr  error
	removeErr error
	lookupErr error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]domain.JobRecord),
		touches: make(map[string]int),
	}
}

func (m *memStore) Save(ctx context.Context, rec *domain.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[rec.JobID] = *rec
	return nil
}

func (m *memStore) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) GetByURL(ctx context.Context, url string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, rec := range m.records {
		if rec.URL == url {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(ctx context.Context) ([]domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]domain.JobRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	return records, nil
}

func (m *memStore) Remove(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.records, jobID)
	return nil
}

func (m *memStore) Touch(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	m.touches[jobID]++
	return nil
}

func (m *memStore) has(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[jobID]
	return ok
}
