package graph

import (
	"fmt"
	"testing"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_UndoRedoRoundTrip(t *testing.T) {
	store := NewStore()
	history := NewHistory(store)

	states := []domain.Snapshot{store.Snapshot()}

	for i := 0; i < 5; i++ {
		history.Snapshot()

		_, err := store.AddNode(domain.Node{
			ID:       fmt.Sprintf("llm-%d", i),
			Kind:     domain.NodeKindRunLLM,
			Position: domain.Position{X: float64(i * 10), Y: 0},
		})
		require.NoError(t, err)

		if i > 0 {
			_, err = store.AddEdge(domain.Edge{
				ID:           fmt.Sprintf("e-%d", i),
				Source:       fmt.Sprintf("llm-%d", i-1),
				SourceHandle: "result",
				Target:       fmt.Sprintf("llm-%d", i),
				TargetHandle: "prompt",
			})
			require.NoError(t, err)
		}

		states = append(states, store.Snapshot())
	}

	for i := len(states) - 2; i >= 0; i-- {
		require.True(t, history.Undo())
		assert.Equal(t, states[i], store.Snapshot())
	}

	assert.False(t, history.Undo())

	for i := 1; i < len(states); i++ {
		require.True(t, history.Redo())
		assert.Equal(t, states[i], store.Snapshot())
	}

	assert.False(t, history.Redo())
}

func TestHistory_SnapshotClearsRedo(t *testing.T) {
	store := NewStore()
	history := NewHistory(store)

	history.Snapshot()
	_, err := store.AddNode(domain.Node{ID: "a", Kind: domain.NodeKindText})
	require.NoError(t, err)

	require.True(t, history.Undo())
	assert.True(t, history.CanRedo())

	history.Snapshot()
	_, err = store.AddNode(domain.Node{ID: "b", Kind: domain.NodeKindText})
	require.NoError(t, err)

	assert.False(t, history.CanRedo())
	assert.False(t, history.Redo())
}

func TestHistory_UndoSkipsSnapshotsEqualToCurrent(t *testing.T) {
	store := NewStore()
	history := NewHistory(store)

	history.Snapshot()
	_, err := store.AddNode(domain.Node{ID: "a", Kind: domain.NodeKindText})
	require.NoError(t, err)

	history.Snapshot()
	history.Snapshot()

	require.True(t, history.Undo())
	assert.Empty(t, store.Nodes())
}

func TestHistory_ExcludesLiveData(t *testing.T) {
	store := NewStore()
	history := NewHistory(store)

	history.Snapshot()
	_, err := store.AddNode(domain.Node{ID: "llm", Kind: domain.NodeKindRunLLM})
	require.NoError(t, err)
	store.SetLiveData("llm", map[string]any{"result": "hi"})

	require.True(t, history.Undo())
	assert.Empty(t, store.Nodes())
	assert.Equal(t, map[string]any{"result": "hi"}, store.LiveData("llm"))
}

func TestHistory_MaxDepth(t *testing.T) {
	store := NewStore()
	history := NewHistory(store, WithMaxDepth(2))

	for i := 0; i < 4; i++ {
		history.Snapshot()
		_, err := store.AddNode(domain.Node{ID: fmt.Sprintf("n-%d", i), Kind: domain.NodeKindText})
		require.NoError(t, err)
	}

	require.True(t, history.Undo())
	require.True(t, history.Undo())
	assert.False(t, history.Undo())
	assert.Len(t, store.Nodes(), 2)
}

func TestHistory_RedoKeepsMaxDepth(t *testing.T) {
	store := NewStore()
	history := NewHistory(store, WithMaxDepth(2))

	for i := 0; i < 4; i++ {
		history.Snapshot()
		_, err := store.AddNode(domain.Node{ID: fmt.Sprintf("n-%d", i), Kind: domain.NodeKindText})
		require.NoError(t, err)
	}

	for round := 0; round < 3; round++ {
		require.True(t, history.Undo())
		require.True(t, history.Undo())
		require.True(t, history.Redo())
		require.True(t, history.Redo())

		assert.LessOrEqual(t, len(history.past), 2)
		assert.Len(t, store.Nodes(), 4)
	}

	require.True(t, history.Undo())
	require.True(t, history.Undo())
	assert.False(t, history.Undo())
	assert.Len(t, store.Nodes(), 2)
}
