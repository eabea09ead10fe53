package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// GraphStore is the part of the graph store a node run reads from and
// writes to.
type GraphStore interface {
	GetNode(id string) (domain.Node, bool)
	ResolveString(nodeID, handle string) (string, bool)
	SetLiveData(nodeID string, fields map[string]any)
}

type NodeRunnerDependencies struct {
	Graph    GraphStore
	Tracker  *ExecutionTracker
	Bridge   *JobBridge
	Cropper  domain.ImageCropper
	Observer *ExecutionObserver

	// MaxConcurrentRuns bounds the runs executing at once. Zero means no
	// bound.
	MaxConcurrentRuns int64
}

// NodeRunner gathers a node's inputs, executes it either locally or as a job,
// and applies the result to live data and the execution state.
type NodeRunner struct {
	graph    GraphStore
	tracker  *ExecutionTracker
	bridge   *JobBridge
	cropper  domain.ImageCropper
	observer *ExecutionObserver
	limiter  *semaphore.Weighted
}

func NewNodeRunner(deps NodeRunnerDependencies) *NodeRunner {
	observer := deps.Observer
	if observer == nil {
		observer = NewExecutionObserver()
	}

	runner := &NodeRunner{
		graph:    deps.Graph,
		tracker:  deps.Tracker,
		bridge:   deps.Bridge,
		cropper:  deps.Cropper,
		observer: observer,
	}

	if deps.MaxConcurrentRuns > 0 {
		runner.limiter = semaphore.NewWeighted(deps.MaxConcurrentRuns)
	}

	return runner
}

// Run is a node run in flight.
type Run struct {
	NodeID string

	done   chan struct{}
	once   sync.Once
	output map[string]any
	err    error
}

func newRun(nodeID string) *Run {
	return &Run{
		NodeID: nodeID,
		done:   make(chan struct{}),
	}
}

func (r *Run) finish(output map[string]any, err error) {
	r.once.Do(func() {
		r.output = output
		r.err = err
		close(r.done)
	})
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done. Returning because of ctx
// does not cancel the run.
func (r *Run) Wait(ctx context.Context) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return r.output, r.err
	}
}

type nodeOperation struct {
	node        domain.Node
	jobKind     domain.JobKind
	payload     map[string]any
	outputField string
	local       func(ctx context.Context) (map[string]any, error)
}

// Start validates the node's inputs and launches its run in the background.
// Validation failures are returned synchronously and leave the execution
// state untouched. Starting a node that is already running returns
// ErrAlreadyRunning and does nothing.
func (r *NodeRunner) Start(ctx context.Context, nodeID string) (*Run, error) {
	node, ok := r.graph.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	if r.tracker.IsRunning(nodeID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, nodeID)
	}

	operation, err := r.prepare(node)
	if err != nil {
		return nil, err
	}

	if err := r.tracker.Begin(nodeID); err != nil {
		return nil, err
	}

	startedAt := time.Now()

	r.notify(ctx, NodeRunStartedEvent{
		NodeID:    node.ID,
		Kind:      node.Kind,
		Timestamp: startedAt,
	})

	run := newRun(nodeID)

	go r.execute(ctx, operation, run, startedAt)

	return run, nil
}

// RunNode starts a node and waits for it to finish.
func (r *NodeRunner) RunNode(ctx context.Context, nodeID string) (map[string]any, error) {
	run, err := r.Start(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	return run.Wait(ctx)
}

func (r *NodeRunner) execute(ctx context.Context, operation nodeOperation, run *Run, startedAt time.Time) {
	node := operation.node

	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx, 1); err != nil {
			r.fail(ctx, node, "", fmt.Errorf("waiting for a run slot: %w", err))
			run.finish(nil, err)
			return
		}
		defer r.limiter.Release(1)
	}

	var (
		output map[string]any
		jobID  string
		err    error
	)

	if operation.local != nil {
		output, err = operation.local(ctx)
	} else {
		output, jobID, err = r.executeJob(ctx, operation)
	}

	if err != nil {
		r.fail(ctx, node, jobID, err)
		run.finish(nil, err)
		return
	}

	r.graph.SetLiveData(node.ID, output)

	if err := r.tracker.Complete(node.ID); err != nil {
		log.Error().Err(err).Str("node_id", node.ID).Msg("Failed to mark node completed")
	}

	r.notify(ctx, NodeRunCompletedEvent{
		NodeID:    node.ID,
		Kind:      node.Kind,
		JobID:     jobID,
		Output:    output,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
	})

	run.finish(output, nil)
}

func (r *NodeRunner) executeJob(ctx context.Context, operation nodeOperation) (map[string]any, string, error) {
	if r.bridge == nil {
		return nil, "", fmt.Errorf("no job runner configured for %s", operation.jobKind)
	}

	result, err := r.bridge.Execute(ctx, ExecuteJobParams{
		Kind:    operation.jobKind,
		Payload: operation.payload,
		OnTriggered: func(jobID string) {
			r.tracker.SetJobID(operation.node.ID, jobID)
		},
	})
	if err != nil {
		return nil, result.JobID, err
	}

	value, ok := result.Output[operation.outputField]
	if !ok {
		return nil, result.JobID, &domain.JobError{
			Kind:    domain.JobErrorKindFailed,
			JobID:   result.JobID,
			Status:  domain.JobStatusCompleted,
			Message: fmt.Sprintf("job output is missing %q", operation.outputField),
		}
	}

	return map[string]any{operation.outputField: value}, result.JobID, nil
}

func (r *NodeRunner) fail(ctx context.Context, node domain.Node, jobID string, cause error) {
	if err := r.tracker.Fail(node.ID, cause); err != nil {
		log.Error().Err(err).Str("node_id", node.ID).Msg("Failed to mark node failed")
	}

	r.notify(ctx, NodeRunFailedEvent{
		NodeID:    node.ID,
		Kind:      node.Kind,
		JobID:     jobID,
		Error:     cause,
		Timestamp: time.Now(),
	})
}

func (r *NodeRunner) notify(ctx context.Context, event ExecutionEvent) {
	if err := r.observer.Notify(context.WithoutCancel(ctx), event); err != nil {
		log.Error().Err(err).Str("event_type", string(event.GetEventType())).Msg("Failed to notify execution event")
	}
}

func (r *NodeRunner) prepare(node domain.Node) (nodeOperation, error) {
	switch data := node.Data.(type) {
	case domain.RunLLMData:
		return r.prepareRunLLM(node, data)
	case domain.ExtractFrameData:
		return r.prepareExtractFrame(node, data)
	case domain.CropImageData:
		return r.prepareCropImage(node, data)
	}

	return nodeOperation{}, fmt.Errorf("%w: %s", domain.ErrNodeNotRunnable, node.Kind)
}

func (r *NodeRunner) prepareRunLLM(node domain.Node, data domain.RunLLMData) (nodeOperation, error) {
	prompt, ok := r.graph.ResolveString(node.ID, domain.HandlePrompt)
	if !ok {
		return nodeOperation{}, domain.NewValidationError(node.ID, domain.HandlePrompt, "a connected, non-empty prompt is required")
	}

	payload := domain.RunLLMPayload{
		Prompt: prompt,
		Model:  data.Model,
	}

	if system, ok := r.graph.ResolveString(node.ID, domain.HandleSystem); ok {
		payload.System = system
	}

	if image, ok := r.graph.ResolveString(node.ID, domain.HandleImage); ok {
		payload.Image = image
	}

	return nodeOperation{
		node:        node,
		jobKind:     domain.JobKindRunLLMTask,
		payload:     payload.ToMap(),
		outputField: domain.FieldResult,
	}, nil
}

func (r *NodeRunner) prepareExtractFrame(node domain.Node, data domain.ExtractFrameData) (nodeOperation, error) {
	videoURL, ok := r.graph.ResolveString(node.ID, domain.HandleVideo)
	if !ok {
		return nodeOperation{}, domain.NewValidationError(node.ID, domain.HandleVideo, "a connected video is required")
	}

	if data.Timestamp < 0 {
		return nodeOperation{}, domain.NewValidationError(node.ID, "timestamp", "timestamp must not be negative")
	}

	return nodeOperation{
		node:    node,
		jobKind: domain.JobKindExtractVideoFrame,
		payload: domain.ExtractFramePayload{
			VideoURL:  videoURL,
			Timestamp: data.Timestamp,
		}.ToMap(),
		outputField: domain.FieldImageURL,
	}, nil
}

func (r *NodeRunner) prepareCropImage(node domain.Node, data domain.CropImageData) (nodeOperation, error) {
	imageURL, ok := r.graph.ResolveString(node.ID, domain.HandleImage)
	if !ok {
		return nodeOperation{}, domain.NewValidationError(node.ID, domain.HandleImage, "a connected image is required")
	}

	if err := validateCrop(node.ID, data); err != nil {
		return nodeOperation{}, err
	}

	if r.cropper == nil {
		return nodeOperation{}, fmt.Errorf("no image cropper configured")
	}

	request := domain.CropRequest{
		ImageURL: strings.TrimSpace(imageURL),
		X:        data.X,
		Y:        data.Y,
		Width:    data.Width,
		Height:   data.Height,
	}

	return nodeOperation{
		node: node,
		local: func(ctx context.Context) (map[string]any, error) {
			croppedURL, err := r.cropper.Crop(ctx, request)
			if err != nil {
				return nil, fmt.Errorf("failed to crop image: %w", err)
			}

			return map[string]any{domain.FieldImageURL: croppedURL}, nil
		},
	}, nil
}

func validateCrop(nodeID string, data domain.CropImageData) error {
	switch {
	case data.X < 0 || data.X >= 100:
		return domain.NewValidationError(nodeID, "x", "x must be between 0 and 100")
	case data.Y < 0 || data.Y >= 100:
		return domain.NewValidationError(nodeID, "y", "y must be between 0 and 100")
	case data.Width <= 0 || data.Width > 100:
		return domain.NewValidationError(nodeID, "width", "width must be greater than 0 and at most 100")
	case data.Height <= 0 || data.Height > 100:
		return domain.NewValidationError(nodeID, "height", "height must be greater than 0 and at most 100")
	case data.X+data.Width > 100:
		return domain.NewValidationError(nodeID, "width", "crop exceeds the right edge of the image")
	case data.Y+data.Height > 100:
		return domain.NewValidationError(nodeID, "height", "crop exceeds the bottom edge of the image")
	}

	return nil
}
