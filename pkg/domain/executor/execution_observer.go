package executor

import (
	"context"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
)

type ExecutionEventType string

const (
	ExecutionEventTypeNodeRunStarted   ExecutionEventType = "node_run_started"
	ExecutionEventTypeNodeRunCompleted ExecutionEventType = "node_run_completed"
	ExecutionEventTypeNodeRunFailed    ExecutionEventType = "node_run_failed"
)

type ExecutionEvent interface {
	GetEventType() ExecutionEventType
}

type NodeRunStartedEvent struct {
	NodeID    string
	Kind      domain.NodeKind
	Timestamp time.Time
}

func (NodeRunStartedEvent) GetEventType() ExecutionEventType {
	return ExecutionEventTypeNodeRunStarted
}

type NodeRunCompletedEvent struct {
	NodeID    string
	Kind      domain.NodeKind
	JobID     string
	Output    map[string]any
	StartedAt time.Time
	EndedAt   time.Time
}

func (NodeRunCompletedEvent) GetEventType() ExecutionEventType {
	return ExecutionEventTypeNodeRunCompleted
}

type NodeRunFailedEvent struct {
	NodeID    string
	Kind      domain.NodeKind
	JobID     string
	Error     error
	Timestamp time.Time
}

func (NodeRunFailedEvent) GetEventType() ExecutionEventType {
	return ExecutionEventTypeNodeRunFailed
}

type ExecutionEventHandler interface {
	HandleEvent(ctx context.Context, event ExecutionEvent) error
}

type ExecutionObserver struct {
	mu       sync.RWMutex
	handlers []ExecutionEventHandler
}

func NewExecutionObserver() *ExecutionObserver {
	return &ExecutionObserver{
		handlers: []ExecutionEventHandler{},
	}
}

func (o *ExecutionObserver) Subscribe(handler ExecutionEventHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.handlers = append(o.handlers, handler)
}

func (o *ExecutionObserver) Notify(ctx context.Context, event ExecutionEvent) error {
	o.mu.RLock()
	handlers := append([]ExecutionEventHandler(nil), o.handlers...)
	o.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			return err
		}
	}

	return nil
}
