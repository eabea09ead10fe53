package jobrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/flowbaker/weave/internal/auth"
	"github.com/flowbaker/weave/pkg/domain"
)

// Client talks to a job runner over HTTP. It implements domain.JobRunner.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	signer     *auth.RequestSigner
}

func NewClient(options ...ClientOption) (*Client, error) {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	var signer *auth.RequestSigner
	if config.SigningKey != "" {
		var err error

		signer, err = auth.NewRequestSigner(config.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize request signer: %w", err)
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		signer:     signer,
	}, nil
}

// IdempotencyKeyHeader carries the trigger key so a retried POST resolves to
// the run the first one created.
const IdempotencyKeyHeader = "Idempotency-Key"

func (c *Client) Trigger(ctx context.Context, kind domain.JobKind, payload map[string]any, idempotencyKey string) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("job kind cannot be empty")
	}

	path := "/api/v1/tasks/" + url.PathEscape(string(kind)) + "/trigger"

	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(IdempotencyKeyHeader, idempotencyKey)
	}

	var triggered TriggerResponse

	if err := c.call(ctx, http.MethodPost, path, header, TriggerRequest{Payload: payload}, &triggered); err != nil {
		return "", wrapTransport(fmt.Errorf("failed to trigger %s: %w", kind, err))
	}

	if triggered.ID == "" {
		return "", fmt.Errorf("job runner returned no run id for %s", kind)
	}

	return triggered.ID, nil
}

func (c *Client) Retrieve(ctx context.Context, jobID string) (domain.JobRun, error) {
	if jobID == "" {
		return domain.JobRun{}, fmt.Errorf("job id cannot be empty")
	}

	var run RunResponse

	if err := c.call(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(jobID), nil, nil, &run); err != nil {
		return domain.JobRun{}, wrapTransport(fmt.Errorf("failed to retrieve run %s: %w", jobID, err))
	}

	return toJobRun(run), nil
}

func toJobRun(resp RunResponse) domain.JobRun {
	run := domain.JobRun{
		ID:        resp.ID,
		Kind:      domain.JobKind(resp.TaskID),
		Status:    domain.JobStatus(resp.Status),
		Output:    resp.Output,
		CreatedAt: parseTime(resp.CreatedAt),
		UpdatedAt: parseTime(resp.UpdatedAt),
	}

	if resp.Error != nil {
		run.Error = resp.Error.Message
	}

	if completedAt := parseTime(resp.CompletedAt); !completedAt.IsZero() {
		run.CompletedAt = &completedAt
	}

	return run
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

// wrapTransport marks failures worth retrying as transport errors so the job
// bridge can tell them from rejected requests.
func wrapTransport(err error) error {
	if isRetryable(err) {
		return &domain.TransportError{Err: err}
	}

	return err
}

// isRetryable reports network failures and 5xx or 429 responses. Cancelled
// and expired contexts are final.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var urlErr *url.Error

	return errors.As(err, &urlErr)
}

// call sends a request and decodes the response into out, retrying up to
// RetryAttempts times while the failure is retryable.
func (c *Client) call(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body []byte

	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = encoded
	}

	err := c.send(ctx, method, path, header, body, out)

	for attempt := 1; attempt <= c.config.RetryAttempts && isRetryable(err); attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.RetryDelay):
		}

		err = c.send(ctx, method, path, header, body, out)
	}

	return err
}

func (c *Client) send(ctx context.Context, method, path string, header http.Header, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		req.Header[key] = values
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.signer != nil {
		for key, value := range c.signer.SignRequest(method, path, body) {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return newError(resp, data)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
