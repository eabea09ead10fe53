package editor

import (
	"context"
	"testing"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorkflows struct {
	domain.WorkflowRepository
	workflows map[string]domain.Workflow
}

func (s *stubWorkflows) GetByID(ctx context.Context, userID, workflowID string) (domain.Workflow, error) {
	workflow, ok := s.workflows[workflowID]
	if !ok || workflow.UserID != userID {
		return domain.Workflow{}, domain.ErrWorkflowNotFound
	}

	return workflow, nil
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	manager := NewSessionManager(SessionManagerDependencies{})
	defer manager.Stop()

	_, err := manager.Create(context.Background(), CreateSessionParams{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	session, err := manager.Create(context.Background(), CreateSessionParams{UserID: "alice"})
	require.NoError(t, err)

	got, err := manager.Get("alice", session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = manager.Get("bob", session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, manager.Close("alice", session.ID))
	_, err = manager.Get("alice", session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_CreateFromWorkflow(t *testing.T) {
	snapshot := domain.Snapshot{
		Nodes: []domain.Node{{ID: "T", Kind: domain.NodeKindText, Data: domain.TextData{Text: "hi"}}},
		Edges: []domain.Edge{},
	}

	manager := NewSessionManager(SessionManagerDependencies{
		Workflows: &stubWorkflows{workflows: map[string]domain.Workflow{
			"wf-1": {ID: "wf-1", UserID: "alice", Snapshot: snapshot},
		}},
	})
	defer manager.Stop()

	session, err := manager.Create(context.Background(), CreateSessionParams{UserID: "alice", WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Equal(t, snapshot, session.Snapshot())
	assert.Equal(t, "wf-1", session.WorkflowID())

	_, err = manager.Create(context.Background(), CreateSessionParams{UserID: "bob", WorkflowID: "wf-1"})
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	assert.Equal(t, 1, manager.Count())
}

func TestSessionManager_EvictIdle(t *testing.T) {
	manager := NewSessionManager(SessionManagerDependencies{IdleTimeout: time.Minute})
	defer manager.Stop()

	_, err := manager.Create(context.Background(), CreateSessionParams{UserID: "alice"})
	require.NoError(t, err)
	_, err = manager.Create(context.Background(), CreateSessionParams{UserID: "bob"})
	require.NoError(t, err)

	assert.Zero(t, manager.EvictIdle(time.Now()))
	assert.Equal(t, 2, manager.EvictIdle(time.Now().Add(2*time.Minute)))
	assert.Zero(t, manager.Count())
}

func TestSessionManager_StartRejectsBadSchedule(t *testing.T) {
	manager := NewSessionManager(SessionManagerDependencies{EvictSchedule: "every now and then"})

	assert.Error(t, manager.Start())

	manager = NewSessionManager(SessionManagerDependencies{})
	require.NoError(t, manager.Start())
	manager.Stop()
}
