package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobwatch/internal/core/domain"
)

const defaultTimeout = 30 * time.Second

// Client implements ports.StatusClient against the analysis service's REST
// API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a Client for the service at baseURL. token may be empty when
// the service does not require auth.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// StartJob submits url for analysis and returns the job id issued by the
// service.
func (c *Client) StartJob(ctx context.Context, rawURL string) (string, error) {
	body, _ := json.Marshal(map[string]string{"url": rawURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", &domain.SubmissionError{URL: rawURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.SubmissionError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &domain.SubmissionError{
			URL: rawURL,
			Err: fmt.Errorf("service returned status %d, body: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &domain.SubmissionError{URL: rawURL, Err: err}
	}
	if result.JobID == "" {
		return "", &domain.SubmissionError{URL: rawURL, Err: errors.New("service returned no job id")}
	}

	return result.JobID, nil
}

// FetchStatus returns the current status of jobID.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, &domain.StatusFetchError{JobID: jobID, Err: err}
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.StatusFetchError{JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.StatusFetchError{
			JobID: jobID,
			Err:   fmt.Errorf("service returned status %d", resp.StatusCode),
		}
	}

	var status domain.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &domain.StatusFetchError{JobID: jobID, Err: err}
	}

	return &status, nil
}

// ActiveJobs lists the jobs the backend still considers active.
func (c *Client) ActiveJobs(ctx context.Context) ([]domain.ActiveJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/active", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list active jobs: service returned status %d", resp.StatusCode)
	}

	var jobs []domain.ActiveJob
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("failed to decode active jobs: %w", err)
	}

	return jobs, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
