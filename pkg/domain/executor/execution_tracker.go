package executor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
)

var ErrInvalidTransition = errors.New("invalid execution state transition")

// ExecutionTracker holds the run state machine of every node in a session.
// Nodes it has never seen are idle.
type ExecutionTracker struct {
	executions map[string]*domain.NodeExecution
	mu         sync.RWMutex
	now        func() time.Time
}

func NewExecutionTracker() *ExecutionTracker {
	return &ExecutionTracker{
		executions: make(map[string]*domain.NodeExecution),
		now:        time.Now,
	}
}

// Begin moves a node to running. A node that is already running is left as
// it is and ErrAlreadyRunning is returned.
func (t *ExecutionTracker) Begin(nodeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	execution, ok := t.executions[nodeID]
	if !ok {
		execution = &domain.NodeExecution{NodeID: nodeID, State: domain.ExecutionStateIdle}
		t.executions[nodeID] = execution
	}

	if execution.State == domain.ExecutionStateRunning {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, nodeID)
	}

	execution.State = domain.ExecutionStateRunning
	execution.Error = ""
	execution.JobID = ""
	execution.RunCount++
	execution.StartedAt = t.now()
	execution.EndedAt = time.Time{}

	return nil
}

func (t *ExecutionTracker) SetJobID(nodeID, jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if execution, ok := t.executions[nodeID]; ok && execution.State == domain.ExecutionStateRunning {
		execution.JobID = jobID
	}
}

// Complete must only be called once the node's outputs are in live data.
func (t *ExecutionTracker) Complete(nodeID string) error {
	return t.finish(nodeID, domain.ExecutionStateCompleted, nil)
}

func (t *ExecutionTracker) Fail(nodeID string, cause error) error {
	return t.finish(nodeID, domain.ExecutionStateFailed, cause)
}

func (t *ExecutionTracker) finish(nodeID string, state domain.ExecutionState, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	execution, ok := t.executions[nodeID]
	if !ok || execution.State != domain.ExecutionStateRunning {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, nodeID, state)
	}

	execution.State = state
	execution.EndedAt = t.now()

	if cause != nil {
		execution.Error = cause.Error()
	}

	return nil
}

func (t *ExecutionTracker) State(nodeID string) domain.ExecutionState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	execution, ok := t.executions[nodeID]
	if !ok {
		return domain.ExecutionStateIdle
	}

	return execution.State
}

func (t *ExecutionTracker) IsRunning(nodeID string) bool {
	return t.State(nodeID) == domain.ExecutionStateRunning
}

func (t *ExecutionTracker) Get(nodeID string) domain.NodeExecution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	execution, ok := t.executions[nodeID]
	if !ok {
		return domain.NodeExecution{NodeID: nodeID, State: domain.ExecutionStateIdle}
	}

	return *execution
}

func (t *ExecutionTracker) All() map[string]domain.NodeExecution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make(map[string]domain.NodeExecution, len(t.executions))
	for nodeID, execution := range t.executions {
		all[nodeID] = *execution
	}

	return all
}

// Reset forgets a node that is not running.
func (t *ExecutionTracker) Reset(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if execution, ok := t.executions[nodeID]; ok && execution.State != domain.ExecutionStateRunning {
		delete(t.executions, nodeID)
	}
}
