// Package api provides the HTTP client for the StashQ API.
//
// This package handles the pull side of the job-event subsystem: the
// authoritative job fetch used to reconcile push data, the active-view job
// listing, the unauthenticated liveness check, and API key validation for
// principal resolution. The push side (the event stream) lives in
// internal/stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the default StashQ API base URL.
	DefaultBaseURL = "https://api.stashq.io"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second
)

// Client is the StashQ API client.
type Client struct {
	baseURL    string
	instanceID string
	httpClient *http.Client

	// mu guards apiKey, which is swapped on credentials hot reload while
	// requests run concurrently.
	mu     sync.RWMutex
	apiKey string
}

// NewClient creates a new API client using the production URL.
//
// Parameters:
//   - apiKey: The API key for authentication
//
// Returns:
//   - *Client: A new client instance
func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, DefaultBaseURL)
}

// NewClientWithBaseURL creates a new API client with a custom base URL.
//
// Parameters:
//   - apiKey: The API key for authentication
//   - baseURL: The base URL for the API
//
// Returns:
//   - *Client: A new client instance
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		instanceID: uuid.NewString(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// GetAPIKey returns the API key used by this client.
//
// Returns:
//   - string: The API key
func (c *Client) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// SetAPIKey swaps the credential after a hot reload. Safe to call while
// requests are in flight; they keep the key they started with.
//
// Parameters:
//   - apiKey: The new API key, or "" when credentials were removed
func (c *Client) SetAPIKey(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
}

// BaseURL returns the API base URL used by this client.
//
// Returns:
//   - string: The base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InstanceID returns the per-process client instance identifier. The backend
// uses it to tell redundant concurrent client instances apart; the stream
// layer sends it on every connection attempt.
//
// Returns:
//   - string: The instance UUID
func (c *Client) InstanceID() string {
	return c.instanceID
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

// Error returns a human-readable error message.
//
// Returns:
//   - string: The error message, with fallback to HTTP status if no message available
func (e *APIError) Error() string {
	if e.Message != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotVisible reports whether an error means the record is not visible to
// the current principal: unauthorized, forbidden, or simply not found. The
// router and notifier treat these as "belongs to someone else", not as
// failures.
//
// Parameters:
//   - err: The error to classify
//
// Returns:
//   - bool: True for APIError with status 401, 403, or 404
func IsNotVisible(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// doRequest performs an HTTP request with authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.GetAPIKey())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stashq-cli/1.0")
	req.Header.Set("X-Stashq-Instance", c.instanceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// parseResponse parses the response body into the target struct.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)

		// Try to parse structured error response
		// Supports multiple common error field names
		var errResp struct {
			Error   string `json:"error"`
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		json.Unmarshal(body, &errResp)

		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		detail := errResp.Detail

		// Fallback to raw body if no structured error found
		if message == "" && detail == "" {
			bodyStr := string(body)
			if len(bodyStr) > 200 {
				bodyStr = bodyStr[:200] + "..."
			}
			if bodyStr != "" {
				detail = bodyStr
			}
		}

		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Detail:     detail,
		}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Job is the authoritative job record returned by GET /jobs/{id}.
//
// Raw preserves the exact response document so partial push updates can be
// shallow-merged onto it without losing fields this client does not model.
type Job struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	URL              string  `json:"url"`
	Status           string  `json:"status"`
	Progress         float64 `json:"progress"`
	Owner            string  `json:"owner"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	RetriesExhausted bool    `json:"retries_exhausted,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// GetJob fetches the authoritative record for a job.
//
// Parameters:
//   - ctx: Context for cancellation
//   - jobID: The job ID
//
// Returns:
//   - *Job: The full job record with its raw response document
//   - error: *APIError with StatusCode 401/403/404 when not visible, or other errors
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	resp, err := c.doRequest(ctx, "GET", "/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := parseResponse(resp, &raw); err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	job.Raw = raw

	return &job, nil
}

// JobListResponse represents the response from listing jobs.
type JobListResponse struct {
	Jobs  []Job `json:"jobs"`
	Count int   `json:"count"`
}

// ListJobs fetches the current principal's jobs, newest first. This is the
// active view the router's snapshot cache is sized against.
//
// Parameters:
//   - ctx: Context for cancellation
//   - limit: Maximum number of jobs to return (default: 25)
//   - offset: Number of jobs to skip for pagination (default: 0)
//
// Returns:
//   - *JobListResponse: List of jobs with count
//   - error: Any error that occurred
func (c *Client) ListJobs(ctx context.Context, limit, offset int) (*JobListResponse, error) {
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	path := fmt.Sprintf("/jobs?limit=%d&offset=%d", limit, offset)
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result JobListResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Health performs the unauthenticated liveness check against GET /health.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil when the API answered 2xx, *APIError for HTTP failures,
//     or a wrapped transport error
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "stashq-cli/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

// ValidateAPIKeyResponse represents the response from API key validation.
// Contains the principal information returned when an API key is valid.
type ValidateAPIKeyResponse struct {
	// UserID is the unique identifier for the authenticated principal.
	// Job ownership checks compare against this value.
	UserID string `json:"user_id"`

	// Email is the user's email address.
	Email string `json:"email"`
}

// ValidateAPIKey validates the client's API key against the backend and
// resolves the current principal.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - *ValidateAPIKeyResponse: Principal information if the API key is valid
//   - error: APIError with StatusCode 401 if invalid, or other errors
func (c *Client) ValidateAPIKey(ctx context.Context) (*ValidateAPIKeyResponse, error) {
	resp, err := c.doRequest(ctx, "GET", "/users/me", nil)
	if err != nil {
		return nil, err
	}

	var result ValidateAPIKeyResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
