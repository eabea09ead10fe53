package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID       = errors.New("duplicate id")
	ErrNodeNotFound      = errors.New("node not found")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrInvalidConnection = errors.New("invalid connection")
	ErrDuplicateTarget   = errors.New("target handle already connected")
	ErrCycleDetected     = errors.New("connection would create a cycle")
	ErrUnknownNodeKind   = errors.New("unknown node kind")
	ErrNodeDataMismatch  = errors.New("node data does not match node kind")
	ErrNodeNotRunnable   = errors.New("node kind is not runnable")
	ErrAlreadyRunning    = errors.New("node is already running")

	ErrValidation   = errors.New("validation failed")
	ErrJobFailed    = errors.New("job failed")
	ErrJobTimeout   = errors.New("job timed out")
	ErrJobTransport = errors.New("job transport error")
)

// ValidationError reports a node input or setting that prevents a run.
type ValidationError struct {
	NodeID  string
	Field   string
	Message string
}

func NewValidationError(nodeID, field, message string) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for node %s, field %s: %s", e.NodeID, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type JobErrorKind string

const (
	JobErrorKindFailed    JobErrorKind = "job_failed"
	JobErrorKindTimeout   JobErrorKind = "timeout"
	JobErrorKindTransport JobErrorKind = "transport"
)

type JobError struct {
	Kind    JobErrorKind
	JobID   string
	Status  JobStatus
	Message string
	Err     error
}

func (e *JobError) Error() string {
	msg := ""

	switch e.Kind {
	case JobErrorKindFailed:
		msg = "job failed"
	case JobErrorKindTimeout:
		msg = "job did not finish within the poll budget"
	case JobErrorKindTransport:
		msg = "job runner call failed"
	default:
		msg = "job error"
	}

	if e.JobID != "" {
		msg = fmt.Sprintf("%s (job %s)", msg, e.JobID)
	}

	if e.Status != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Status)
	}

	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	switch target {
	case ErrJobFailed:
		return e.Kind == JobErrorKindFailed
	case ErrJobTimeout:
		return e.Kind == JobErrorKindTimeout
	case ErrJobTransport:
		return e.Kind == JobErrorKindTransport
	}

	return false
}

// TransportError marks a job runner call that failed before the runner could
// answer. Job runner implementations wrap network and 5xx failures with it so
// the bridge can retry them.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var transportErr *TransportError

	return errors.As(err, &transportErr)
}
