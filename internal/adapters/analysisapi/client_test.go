package analysisapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobwatch/internal/core/domain"
)

func TestStartJob(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.URL != "https://x.com/u/status/1" {
			t.Errorf("unexpected url in body: %q", body.URL)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "j1"})
	}))
	defer ts.Close()

	jobID, err := New(ts.URL, "secret").StartJob(context.Background(), "https://x.com/u/status/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "j1" {
		t.Fatalf("expected j1, got %q", jobID)
	}
}

func TestStartJobRejectionIsSubmissionError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported url", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "").StartJob(context.Background(), "ftp://nope")

	var submission *domain.SubmissionError
	if !errors.As(err, &submission) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if submission.URL != "ftp://nope" {
		t.Fatalf("unexpected url on error: %q", submission.URL)
	}
}

func TestStartJobUnreachableIsSubmissionError(t *testing.T) {
	ts := httptest.NewServer(nil)
	ts.Close() // nothing listening anymore

	_, err := New(ts.URL, "").StartJob(context.Background(), "u")

	var submission *domain.SubmissionError
	if !errors.As(err, &submission) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestFetchStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/j1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(domain.JobStatus{
			Status:   domain.StateProcessing,
			Progress: 42,
		})
	}))
	defer ts.Close()

	status, err := New(ts.URL, "").FetchStatus(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != domain.StateProcessing || status.Progress != 42 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestFetchStatusServerErrorIsStatusFetchError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "").FetchStatus(context.Background(), "j1")

	var fetchErr *domain.StatusFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected StatusFetchError, got %v", err)
	}
	if fetchErr.JobID != "j1" {
		t.Fatalf("unexpected job id on error: %q", fetchErr.JobID)
	}
}

func TestFetchStatusDistinguishesRemoteFailure(t *testing.T) {
	// The service reporting the job as failed is a legitimate response, not
	// a fetch error.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.JobStatus{
			Status: domain.StateFailed,
			Error:  "could not transcribe",
		})
	}))
	defer ts.Close()

	status, err := New(ts.URL, "").FetchStatus(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != domain.StateFailed || status.Error != "could not transcribe" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestActiveJobs(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/active" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]domain.ActiveJob{
			{JobID: "j1", URL: "u1"},
			{JobID: "j2", URL: "u2"},
		})
	}))
	defer ts.Close()

	jobs, err := New(ts.URL, "").ActiveJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].JobID != "j1" || jobs[1].URL != "u2" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}
