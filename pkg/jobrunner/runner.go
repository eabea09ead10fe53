package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultMaxDuration = 5 * time.Minute

	// IdempotencyWindow is how long a trigger key keeps resolving to its run.
	IdempotencyWindow = 10 * time.Minute
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrQueueFull     = errors.New("job queue is full")
	ErrRunnerStopped = errors.New("job runner is stopped")
	ErrNotStarted    = errors.New("job runner is not started")
)

// TaskHandler executes one kind of job.
type TaskHandler interface {
	Handle(ctx context.Context, payload map[string]any) (map[string]any, error)
}

type TaskHandlerFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

func (f TaskHandlerFunc) Handle(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return f(ctx, payload)
}

type RunnerDependencies struct {
	Store       RunStore
	Handlers    map[domain.JobKind]TaskHandler
	Workers     int
	QueueSize   int
	MaxDuration time.Duration
}

// Runner is an in-process job runner. Triggered jobs are queued and executed
// by a fixed pool of workers. It implements domain.JobRunner.
type Runner struct {
	store       RunStore
	handlers    map[domain.JobKind]TaskHandler
	workers     int
	maxDuration time.Duration
	queue       chan string
	now         func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	keys    map[string]keyedRun
}

type keyedRun struct {
	runID     string
	createdAt time.Time
}

func NewRunner(deps RunnerDependencies) *Runner {
	store := deps.Store
	if store == nil {
		store = NewMemoryStore()
	}

	workers := deps.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	maxDuration := deps.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}

	handlers := make(map[domain.JobKind]TaskHandler, len(deps.Handlers))
	for kind, handler := range deps.Handlers {
		handlers[kind] = handler
	}

	return &Runner{
		store:       store,
		handlers:    handlers,
		workers:     workers,
		maxDuration: maxDuration,
		queue:       make(chan string, queueSize),
		now:         time.Now,
		keys:        make(map[string]keyedRun),
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled or Stop
// is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	if r.started {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(workerCtx)

	for i := 0; i < r.workers; i++ {
		group.Go(func() error {
			r.work(groupCtx)
			return nil
		})
	}

	r.started = true
	r.cancel = cancel
	r.group = group

	log.Info().Int("workers", r.workers).Msg("Job runner started")

	return nil
}

// Stop cancels running jobs, waits for the workers and marks queued jobs as
// canceled.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}

	r.stopped = true
	cancel, group := r.cancel, r.group
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = group.Wait()
	}

	ctx := context.Background()

	for {
		select {
		case id := <-r.queue:
			r.finish(ctx, id, domain.JobStatusCanceled, nil, "job runner stopped")
		default:
			log.Info().Msg("Job runner stopped")
			return
		}
	}
}

// Trigger queues a job. A key seen within IdempotencyWindow returns the run it
// created instead of queueing another one.
func (r *Runner) Trigger(ctx context.Context, kind domain.JobKind, payload map[string]any, idempotencyKey string) (string, error) {
	if _, ok := r.handlers[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return "", ErrRunnerStopped
	}

	if !r.started {
		return "", ErrNotStarted
	}

	now := r.now()
	r.forgetExpiredKeys(now)

	if idempotencyKey != "" {
		if keyed, ok := r.keys[idempotencyKey]; ok {
			log.Debug().Str("run_id", keyed.runID).Str("kind", string(kind)).Msg("Duplicate trigger resolved to existing run")
			return keyed.runID, nil
		}
	}

	run := domain.JobRun{
		ID:        xid.New().String(),
		Kind:      kind,
		Status:    domain.JobStatusQueued,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.Save(ctx, run); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	select {
	case r.queue <- run.ID:
	default:
		r.finish(ctx, run.ID, domain.JobStatusFailed, nil, ErrQueueFull.Error())
		return "", ErrQueueFull
	}

	if idempotencyKey != "" {
		r.keys[idempotencyKey] = keyedRun{runID: run.ID, createdAt: now}
	}

	log.Debug().Str("run_id", run.ID).Str("kind", string(kind)).Msg("Job queued")

	return run.ID, nil
}

// forgetExpiredKeys must be called with r.mu held.
func (r *Runner) forgetExpiredKeys(now time.Time) {
	for key, keyed := range r.keys {
		if now.Sub(keyed.createdAt) > IdempotencyWindow {
			delete(r.keys, key)
		}
	}
}

func (r *Runner) Retrieve(ctx context.Context, jobID string) (domain.JobRun, error) {
	run, err := r.store.Get(ctx, jobID)
	if err != nil {
		return domain.JobRun{}, fmt.Errorf("failed to get run %s: %w", jobID, err)
	}

	return run, nil
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.execute(ctx, id)
		}
	}
}

type handlerResult struct {
	output map[string]any
	err    error
	panic  any
}

func (r *Runner) execute(ctx context.Context, id string) {
	storeCtx := context.WithoutCancel(ctx)

	run, err := r.store.Get(storeCtx, id)
	if err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("Failed to load queued run")
		return
	}

	handler := r.handlers[run.Kind]

	run.Status = domain.JobStatusExecuting
	run.UpdatedAt = r.now()
	if err := r.store.Save(storeCtx, run); err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("Failed to mark run executing")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.maxDuration)
	defer cancel()

	done := make(chan handlerResult, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- handlerResult{panic: p}
			}
		}()

		output, err := handler.Handle(runCtx, run.Payload)
		done <- handlerResult{output: output, err: err}
	}()

	var (
		result   handlerResult
		returned bool
	)

	select {
	case result = <-done:
		returned = true
	case <-runCtx.Done():
	}

	switch {
	case result.panic != nil:
		log.Error().Str("run_id", id).Interface("panic", result.panic).Msg("Job handler panicked")
		r.finish(storeCtx, id, domain.JobStatusCrashed, nil, fmt.Sprintf("handler panicked: %v", result.panic))
	case returned && result.err == nil:
		r.finish(storeCtx, id, domain.JobStatusCompleted, result.output, "")
	case ctx.Err() != nil:
		r.finish(storeCtx, id, domain.JobStatusCanceled, nil, "job runner stopped")
	case runCtx.Err() != nil:
		r.finish(storeCtx, id, domain.JobStatusTimedOut, nil, fmt.Sprintf("job exceeded max duration of %s", r.maxDuration))
	default:
		r.finish(storeCtx, id, domain.JobStatusFailed, nil, result.err.Error())
	}
}

func (r *Runner) finish(ctx context.Context, id string, status domain.JobStatus, output map[string]any, message string) {
	run, err := r.store.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		return
	}

	now := r.now()
	run.Status = status
	run.Output = output
	run.Error = message
	run.UpdatedAt = now
	run.CompletedAt = &now

	if err := r.store.Save(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("Failed to save finished run")
		return
	}

	log.Debug().Str("run_id", id).Str("status", string(status)).Msg("Job finished")
}
