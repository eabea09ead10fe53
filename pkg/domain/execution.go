package domain

import "time"

type ExecutionState string

const (
	ExecutionStateIdle      ExecutionState = "idle"
	ExecutionStateRunning   ExecutionState = "running"
	ExecutionStateCompleted ExecutionState = "completed"
	ExecutionStateFailed    ExecutionState = "failed"
)

type NodeExecution struct {
	NodeID    string         `json:"node_id"`
	State     ExecutionState `json:"state"`
	Error     string         `json:"error,omitempty"`
	JobID     string         `json:"job_id,omitempty"`
	RunCount  int            `json:"run_count"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
}
