package domain

import (
	"context"
	"time"
)

type JobKind string

const (
	JobKindRunLLMTask        JobKind = "run-llm-task"
	JobKindExtractVideoFrame JobKind = "extract-video-frame"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusExecuting JobStatus = "EXECUTING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCanceled  JobStatus = "CANCELED"
	JobStatusCrashed   JobStatus = "CRASHED"
	JobStatusTimedOut  JobStatus = "TIMED_OUT"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s.IsFailure()
}

func (s JobStatus) IsFailure() bool {
	switch s {
	case JobStatusFailed, JobStatusCanceled, JobStatusCrashed, JobStatusTimedOut:
		return true
	}

	return false
}

type JobRun struct {
	ID          string         `json:"id"`
	Kind        JobKind        `json:"kind"`
	Status      JobStatus      `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// JobRunner is the trigger-and-poll contract of an asynchronous job service.
// Triggers that carry the same non-empty idempotency key resolve to the run
// created by the first of them.
type JobRunner interface {
	Trigger(ctx context.Context, kind JobKind, payload map[string]any, idempotencyKey string) (string, error)
	Retrieve(ctx context.Context, jobID string) (JobRun, error)
}

type RunLLMPayload struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Image  string `json:"image,omitempty"`
	Model  string `json:"model,omitempty"`
}

func (p RunLLMPayload) ToMap() map[string]any {
	payload := map[string]any{
		"prompt": p.Prompt,
	}

	if p.System != "" {
		payload["system"] = p.System
	}

	if p.Image != "" {
		payload["image"] = p.Image
	}

	if p.Model != "" {
		payload["model"] = p.Model
	}

	return payload
}

type ExtractFramePayload struct {
	VideoURL  string  `json:"videoUrl"`
	Timestamp float64 `json:"timestamp"`
}

func (p ExtractFramePayload) ToMap() map[string]any {
	return map[string]any{
		"videoUrl":  p.VideoURL,
		"timestamp": p.Timestamp,
	}
}
