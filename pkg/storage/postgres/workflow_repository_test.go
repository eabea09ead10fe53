package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *WorkflowRepository {
	t.Helper()

	databaseURL := os.Getenv("WEAVE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("WEAVE_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()

	pool, err := Connect(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewWorkflowRepository(pool)
	require.NoError(t, repo.DropSchema(ctx))
	require.NoError(t, repo.CreateSchema(ctx))

	return repo
}

func TestWorkflowRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	snapshot := domain.Snapshot{
		Nodes: []domain.Node{
			{ID: "t", Kind: domain.NodeKindText, Data: domain.TextData{Text: "hello"}},
			{ID: "l", Kind: domain.NodeKindRunLLM, Data: domain.RunLLMData{}},
		},
		Edges: []domain.Edge{{ID: "e", Source: "t", SourceHandle: domain.HandleText, Target: "l", TargetHandle: domain.HandlePrompt}},
	}

	created, err := repo.Create(ctx, domain.Workflow{Name: "Caption", UserID: "alice", Snapshot: snapshot})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(got.Snapshot))

	_, err = repo.GetByID(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)

	updated, err := repo.Update(ctx, domain.Workflow{ID: created.ID, Name: "Caption v2", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "caption-v2", updated.Slug)

	_, err = repo.Update(ctx, domain.Workflow{ID: created.ID, Name: "x", UserID: "bob"})
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)

	list, err := repo.ListByUser(ctx, domain.ListWorkflowsParams{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.Delete(ctx, "bob", created.ID), domain.ErrWorkflowNotFound)
	require.NoError(t, repo.Delete(ctx, "alice", created.ID))
}
