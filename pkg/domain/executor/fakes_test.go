package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
)

// fakeJobRunner replays scripted trigger errors and poll responses. Once the
// poll script is exhausted the last response repeats.
type fakeJobRunner struct {
	mu sync.Mutex

	jobID        string
	triggerErrs  []error
	runs         []domain.JobRun
	retrieveErrs []error

	triggerCalls  int
	retrieveCalls int
	lastKind      domain.JobKind
	lastPayload   map[string]any
	triggerKeys   []string
}

func (f *fakeJobRunner) Trigger(ctx context.Context, kind domain.JobKind, payload map[string]any, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.triggerCalls++
	f.triggerKeys = append(f.triggerKeys, idempotencyKey)
	f.lastKind = kind
	f.lastPayload = payload

	if len(f.triggerErrs) > 0 {
		err := f.triggerErrs[0]
		f.triggerErrs = f.triggerErrs[1:]

		if err != nil {
			return "", err
		}
	}

	if f.jobID == "" {
		return "run_test", nil
	}

	return f.jobID, nil
}

func (f *fakeJobRunner) Retrieve(ctx context.Context, jobID string) (domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retrieveCalls++

	if len(f.retrieveErrs) > 0 {
		err := f.retrieveErrs[0]
		f.retrieveErrs = f.retrieveErrs[1:]

		if err != nil {
			return domain.JobRun{}, err
		}
	}

	if len(f.runs) == 0 {
		return domain.JobRun{ID: jobID, Status: domain.JobStatusQueued}, nil
	}

	run := f.runs[0]
	if len(f.runs) > 1 {
		f.runs = f.runs[1:]
	}

	run.ID = jobID

	return run, nil
}

func (f *fakeJobRunner) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.triggerCalls, f.retrieveCalls
}

func (f *fakeJobRunner) script(runs ...domain.JobRun) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs = runs
}

func executing() domain.JobRun {
	return domain.JobRun{Status: domain.JobStatusExecuting}
}

func completed(output map[string]any) domain.JobRun {
	return domain.JobRun{Status: domain.JobStatusCompleted, Output: output}
}

func failedRun(status domain.JobStatus, message string) domain.JobRun {
	return domain.JobRun{Status: status, Error: message}
}

func transportErr() error {
	return &domain.TransportError{Err: errors.New("connection reset by peer")}
}

func instantWait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

type fakeCropper struct {
	mu       sync.Mutex
	requests []domain.CropRequest
	url      string
	err      error
}

func (f *fakeCropper) Crop(ctx context.Context, req domain.CropRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	return f.url, f.err
}
