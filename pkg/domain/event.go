package domain

import (
	"context"
	"sync"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

type Event interface {
	GetType() EventType
}

type OrderedEvent interface {
	Event
	GetEventOrder() int
	SetEventOrder(order int)
}

type EventType string

const (
	NodeRunStarted   EventType = "node_run_started"
	NodeRunCompleted EventType = "node_run_completed"
	NodeRunFailed    EventType = "node_run_failed"
)

type NodeRunStartedEvent struct {
	SessionID  string   `json:"session_id"`
	NodeID     string   `json:"node_id"`
	Kind       NodeKind `json:"kind"`
	Timestamp  int64    `json:"timestamp"`
	EventOrder int      `json:"event_order"`
}

func (e *NodeRunStartedEvent) GetType() EventType { return NodeRunStarted }
func (e *NodeRunStartedEvent) GetEventOrder() int { return e.EventOrder }
func (e *NodeRunStartedEvent) SetEventOrder(o int) { e.EventOrder = o }

type NodeRunCompletedEvent struct {
	SessionID  string         `json:"session_id"`
	NodeID     string         `json:"node_id"`
	Kind       NodeKind       `json:"kind"`
	JobID      string         `json:"job_id,omitempty"`
	Output     map[string]any `json:"output"`
	Timestamp  int64          `json:"timestamp"`
	EventOrder int            `json:"event_order"`
}

func (e *NodeRunCompletedEvent) GetType() EventType { return NodeRunCompleted }
func (e *NodeRunCompletedEvent) GetEventOrder() int { return e.EventOrder }
func (e *NodeRunCompletedEvent) SetEventOrder(o int) { e.EventOrder = o }

type NodeRunFailedEvent struct {
	SessionID  string   `json:"session_id"`
	NodeID     string   `json:"node_id"`
	Kind       NodeKind `json:"kind"`
	JobID      string   `json:"job_id,omitempty"`
	Error      string   `json:"error"`
	Timestamp  int64    `json:"timestamp"`
	EventOrder int      `json:"event_order"`
}

func (e *NodeRunFailedEvent) GetType() EventType { return NodeRunFailed }
func (e *NodeRunFailedEvent) GetEventOrder() int { return e.EventOrder }
func (e *NodeRunFailedEvent) SetEventOrder(o int) { e.EventOrder = o }

// OrderedEventPublisher stamps ordered events with a monotonically increasing
// sequence number before handing them to the wrapped publisher.
type OrderedEventPublisher struct {
	eventPublisher EventPublisher

	mtx   sync.Mutex
	order int
}

func NewOrderedEventPublisher(eventPublisher EventPublisher) *OrderedEventPublisher {
	return &OrderedEventPublisher{
		eventPublisher: eventPublisher,
	}
}

func (p *OrderedEventPublisher) PublishEvent(ctx context.Context, event Event) error {
	orderedEvent, isOrderedEvent := event.(OrderedEvent)
	if !isOrderedEvent {
		return p.eventPublisher.PublishEvent(ctx, event)
	}

	p.mtx.Lock()
	p.order++
	orderedEvent.SetEventOrder(p.order)
	p.mtx.Unlock()

	return p.eventPublisher.PublishEvent(ctx, event)
}

type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishEvent(ctx context.Context, event Event) error {
	return nil
}
