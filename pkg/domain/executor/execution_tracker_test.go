package executor

import (
	"errors"
	"testing"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionTracker_Transitions(t *testing.T) {
	tracker := NewExecutionTracker()

	assert.Equal(t, domain.ExecutionStateIdle, tracker.State("n"))

	require.NoError(t, tracker.Begin("n"))
	assert.Equal(t, domain.ExecutionStateRunning, tracker.State("n"))

	assert.ErrorIs(t, tracker.Begin("n"), domain.ErrAlreadyRunning)
	assert.Equal(t, 1, tracker.Get("n").RunCount)

	require.NoError(t, tracker.Complete("n"))
	assert.Equal(t, domain.ExecutionStateCompleted, tracker.State("n"))

	assert.ErrorIs(t, tracker.Complete("n"), ErrInvalidTransition)
	assert.ErrorIs(t, tracker.Fail("n", errors.New("late")), ErrInvalidTransition)

	require.NoError(t, tracker.Begin("n"))
	require.NoError(t, tracker.Fail("n", errors.New("boom")))

	execution := tracker.Get("n")
	assert.Equal(t, domain.ExecutionStateFailed, execution.State)
	assert.Equal(t, "boom", execution.Error)
	assert.Equal(t, 2, execution.RunCount)

	require.NoError(t, tracker.Begin("n"))
	assert.Empty(t, tracker.Get("n").Error)
}

func TestExecutionTracker_FinishRequiresRunning(t *testing.T) {
	tracker := NewExecutionTracker()

	assert.ErrorIs(t, tracker.Complete("idle"), ErrInvalidTransition)
	assert.ErrorIs(t, tracker.Fail("idle", nil), ErrInvalidTransition)
	assert.Equal(t, domain.ExecutionStateIdle, tracker.State("idle"))
}

func TestExecutionTracker_Reset(t *testing.T) {
	tracker := NewExecutionTracker()

	require.NoError(t, tracker.Begin("running"))
	require.NoError(t, tracker.Begin("done"))
	require.NoError(t, tracker.Complete("done"))

	tracker.Reset("running")
	tracker.Reset("done")

	assert.Equal(t, domain.ExecutionStateRunning, tracker.State("running"))
	assert.Equal(t, domain.ExecutionStateIdle, tracker.State("done"))
	assert.Len(t, tracker.All(), 1)
}
