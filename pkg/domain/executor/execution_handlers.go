package executor

import (
	"context"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/rs/zerolog/log"
)

type RunHistoryEntry struct {
	NodeID    string           `json:"node_id"`
	Kind      domain.NodeKind  `json:"kind"`
	JobID     string           `json:"job_id,omitempty"`
	EventType domain.EventType `json:"event_type"`
	Error     string           `json:"error,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// HistoryRecorder records finished node runs
type HistoryRecorder struct {
	historyEntries []RunHistoryEntry
	mutex          sync.Mutex
}

func NewHistoryRecorder() *HistoryRecorder {
	return &HistoryRecorder{
		historyEntries: []RunHistoryEntry{},
	}
}

func (h *HistoryRecorder) HandleEvent(ctx context.Context, event ExecutionEvent) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch e := event.(type) {
	case NodeRunCompletedEvent:
		h.historyEntries = append(h.historyEntries, RunHistoryEntry{
			NodeID:    e.NodeID,
			Kind:      e.Kind,
			JobID:     e.JobID,
			EventType: domain.NodeRunCompleted,
			Timestamp: e.EndedAt.UnixNano(),
		})

	case NodeRunFailedEvent:
		h.historyEntries = append(h.historyEntries, RunHistoryEntry{
			NodeID:    e.NodeID,
			Kind:      e.Kind,
			JobID:     e.JobID,
			EventType: domain.NodeRunFailed,
			Error:     errorString(e.Error),
			Timestamp: e.Timestamp.UnixNano(),
		})
	}

	return nil
}

func (h *HistoryRecorder) GetHistoryEntries() []RunHistoryEntry {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return append([]RunHistoryEntry(nil), h.historyEntries...)
}

// EventBroadcaster publishes run events to an external event publisher
type EventBroadcaster struct {
	eventPublisher domain.EventPublisher
	sessionID      string
}

func NewEventBroadcaster(eventPublisher domain.EventPublisher, sessionID string) *EventBroadcaster {
	return &EventBroadcaster{
		eventPublisher: eventPublisher,
		sessionID:      sessionID,
	}
}

func (b *EventBroadcaster) HandleEvent(ctx context.Context, event ExecutionEvent) error {
	switch e := event.(type) {
	case NodeRunStartedEvent:
		return b.eventPublisher.PublishEvent(ctx, &domain.NodeRunStartedEvent{
			SessionID: b.sessionID,
			NodeID:    e.NodeID,
			Kind:      e.Kind,
			Timestamp: e.Timestamp.UnixNano(),
		})

	case NodeRunCompletedEvent:
		return b.eventPublisher.PublishEvent(ctx, &domain.NodeRunCompletedEvent{
			SessionID: b.sessionID,
			NodeID:    e.NodeID,
			Kind:      e.Kind,
			JobID:     e.JobID,
			Output:    e.Output,
			Timestamp: e.EndedAt.UnixNano(),
		})

	case NodeRunFailedEvent:
		return b.eventPublisher.PublishEvent(ctx, &domain.NodeRunFailedEvent{
			SessionID: b.sessionID,
			NodeID:    e.NodeID,
			Kind:      e.Kind,
			JobID:     e.JobID,
			Error:     errorString(e.Error),
			Timestamp: e.Timestamp.UnixNano(),
		})
	}

	return nil
}

// RunLogger writes run events to the global logger
type RunLogger struct {
	sessionID string
}

func NewRunLogger(sessionID string) *RunLogger {
	return &RunLogger{
		sessionID: sessionID,
	}
}

func (l *RunLogger) HandleEvent(ctx context.Context, event ExecutionEvent) error {
	switch e := event.(type) {
	case NodeRunStartedEvent:
		log.Debug().
			Str("session_id", l.sessionID).
			Str("node_id", e.NodeID).
			Str("kind", string(e.Kind)).
			Msg("Node run started")

	case NodeRunCompletedEvent:
		log.Info().
			Str("session_id", l.sessionID).
			Str("node_id", e.NodeID).
			Str("kind", string(e.Kind)).
			Str("job_id", e.JobID).
			Dur("duration", e.EndedAt.Sub(e.StartedAt).Round(time.Millisecond)).
			Msg("Node run completed")

	case NodeRunFailedEvent:
		log.Error().
			Err(e.Error).
			Str("session_id", l.sessionID).
			Str("node_id", e.NodeID).
			Str("kind", string(e.Kind)).
			Str("job_id", e.JobID).
			Msg("Node run failed")
	}

	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
