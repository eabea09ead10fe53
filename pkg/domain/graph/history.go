package graph

import (
	"sync"

	"github.com/flowbaker/weave/pkg/domain"
)

const DefaultHistoryDepth = 100

type HistoryStore interface {
	Snapshot() domain.Snapshot
	Restore(snapshot domain.Snapshot)
}

// History keeps undo and redo stacks of structural snapshots for a store.
type History struct {
	mu sync.Mutex

	store    HistoryStore
	maxDepth int
	past     []domain.Snapshot
	future   []domain.Snapshot
}

type HistoryOption func(*History)

func WithMaxDepth(depth int) HistoryOption {
	return func(h *History) {
		if depth > 0 {
			h.maxDepth = depth
		}
	}
}

func NewHistory(store HistoryStore, opts ...HistoryOption) *History {
	h := &History{
		store:    store,
		maxDepth: DefaultHistoryDepth,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Snapshot captures the current structure of the store onto the undo stack
// and clears the redo stack.
func (h *History) Snapshot() {
	h.Record(h.store.Snapshot())
}

func (h *History) Record(snapshot domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pushPast(snapshot.Clone())
	h.future = nil
}

// pushPast must be called with h.mu held. It drops the oldest snapshots
// beyond maxDepth.
func (h *History) pushPast(snapshot domain.Snapshot) {
	h.past = append(h.past, snapshot)
	if len(h.past) > h.maxDepth {
		h.past = h.past[len(h.past)-h.maxDepth:]
	}
}

// Undo restores the most recent snapshot that differs from the current
// structure. Snapshots equal to the current structure are discarded. It
// reports false when there was nothing to undo.
func (h *History) Undo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.store.Snapshot()

	for len(h.past) > 0 {
		previous := h.past[len(h.past)-1]
		h.past = h.past[:len(h.past)-1]

		if previous.Equal(current) {
			continue
		}

		h.future = append(h.future, current)
		h.store.Restore(previous.Clone())

		return true
	}

	return false
}

func (h *History) Redo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.store.Snapshot()

	for len(h.future) > 0 {
		next := h.future[len(h.future)-1]
		h.future = h.future[:len(h.future)-1]

		if next.Equal(current) {
			continue
		}

		h.pushPast(current)
		h.store.Restore(next.Clone())

		return true
	}

	return false
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.past) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.future) > 0
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.past = nil
	h.future = nil
}
