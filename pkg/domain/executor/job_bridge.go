package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 60
)

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultMaxPollAttempts,
	}
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type JobBridgeDependencies struct {
	Runner     domain.JobRunner
	PollConfig PollConfig
	Wait       WaitFunc
}

// JobBridge turns a trigger-and-poll job runner into a single call that
// returns the job's output or a classified error.
type JobBridge struct {
	runner     domain.JobRunner
	pollConfig PollConfig
	wait       WaitFunc
}

func NewJobBridge(deps JobBridgeDependencies) *JobBridge {
	pollConfig := deps.PollConfig
	if pollConfig.MaxAttempts <= 0 {
		pollConfig.MaxAttempts = DefaultMaxPollAttempts
	}

	if pollConfig.Interval < 0 {
		pollConfig.Interval = DefaultPollInterval
	}

	wait := deps.Wait
	if wait == nil {
		wait = SleepContext
	}

	return &JobBridge{
		runner:     deps.Runner,
		pollConfig: pollConfig,
		wait:       wait,
	}
}

type ExecuteJobParams struct {
	Kind    domain.JobKind
	Payload map[string]any
	// IdempotencyKey is sent with every trigger attempt. A fresh key is
	// generated when empty.
	IdempotencyKey string
	// OnTriggered is called with the job id once the runner accepted the job.
	OnTriggered func(jobID string)
}

type JobResult struct {
	JobID    string
	Output   map[string]any
	Attempts int
}

func (b *JobBridge) Execute(ctx context.Context, params ExecuteJobParams) (JobResult, error) {
	var jobID string

	idempotencyKey := params.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	err := b.callWithRetry(ctx, func() error {
		id, err := b.runner.Trigger(ctx, params.Kind, params.Payload, idempotencyKey)
		if err != nil {
			return err
		}

		jobID = id
		return nil
	})
	if err != nil {
		return JobResult{}, classifyCallError("", err)
	}

	log.Debug().
		Str("job_id", jobID).
		Str("job_kind", string(params.Kind)).
		Msg("Job triggered")

	if params.OnTriggered != nil {
		params.OnTriggered(jobID)
	}

	for attempt := 1; attempt <= b.pollConfig.MaxAttempts; attempt++ {
		if err := b.wait(ctx, b.pollConfig.Interval); err != nil {
			return JobResult{JobID: jobID, Attempts: attempt - 1}, fmt.Errorf("polling job %s aborted: %w", jobID, err)
		}

		var run domain.JobRun

		err := b.callWithRetry(ctx, func() error {
			retrieved, err := b.runner.Retrieve(ctx, jobID)
			if err != nil {
				return err
			}

			run = retrieved
			return nil
		})
		if err != nil {
			return JobResult{JobID: jobID, Attempts: attempt}, classifyCallError(jobID, err)
		}

		switch {
		case run.Status == domain.JobStatusCompleted:
			return JobResult{JobID: jobID, Output: run.Output, Attempts: attempt}, nil

		case run.Status.IsFailure():
			return JobResult{JobID: jobID, Attempts: attempt}, &domain.JobError{
				Kind:    domain.JobErrorKindFailed,
				JobID:   jobID,
				Status:  run.Status,
				Message: run.Error,
			}
		}

		log.Debug().
			Str("job_id", jobID).
			Str("status", string(run.Status)).
			Int("attempt", attempt).
			Msg("Job not finished yet")
	}

	return JobResult{JobID: jobID, Attempts: b.pollConfig.MaxAttempts}, &domain.JobError{
		Kind:    domain.JobErrorKindTimeout,
		JobID:   jobID,
		Message: fmt.Sprintf("no terminal status after %d polls", b.pollConfig.MaxAttempts),
	}
}

// callWithRetry retries call once when it fails with a transport error.
func (b *JobBridge) callWithRetry(ctx context.Context, call func() error) error {
	err := call()
	if err == nil || !domain.IsTransportError(err) {
		return err
	}

	if ctx.Err() != nil {
		return err
	}

	log.Warn().Err(err).Msg("Job runner call failed, retrying once")

	return call()
}

func classifyCallError(jobID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if domain.IsTransportError(err) {
		return &domain.JobError{
			Kind:  domain.JobErrorKindTransport,
			JobID: jobID,
			Err:   err,
		}
	}

	return &domain.JobError{
		Kind:  domain.JobErrorKindFailed,
		JobID: jobID,
		Err:   err,
	}
}
