package mongodb

import (
	"testing"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentConversion(t *testing.T) {
	workflow := domain.Workflow{
		ID:     "w1",
		Name:   "Frames",
		UserID: "alice",
		Snapshot: domain.Snapshot{
			Nodes: []domain.Node{
				{ID: "v", Kind: domain.NodeKindVideoUpload, Position: domain.Position{X: 10, Y: 20.5}, Data: domain.VideoUploadData{MediaURL: "https://x/clip.mp4"}},
				{ID: "f", Kind: domain.NodeKindExtractFrame, Data: domain.ExtractFrameData{Timestamp: 2.5}},
			},
			Edges: []domain.Edge{{ID: "e", Source: "v", SourceHandle: domain.HandleVideo, Target: "f", TargetHandle: domain.HandleVideo}},
		},
	}

	doc, err := toDocument(workflow)
	require.NoError(t, err)
	assert.Contains(t, doc.Snapshot, "nodes")

	back, err := fromDocument(doc)
	require.NoError(t, err)
	assert.True(t, workflow.Snapshot.Equal(back.Snapshot))
	assert.Equal(t, "alice", back.UserID)
}

func TestFromDocumentWithoutSnapshot(t *testing.T) {
	back, err := fromDocument(workflowDocument{Workflow: domain.Workflow{ID: "w1"}})
	require.NoError(t, err)
	assert.Equal(t, "w1", back.ID)
	assert.Empty(t, back.Snapshot.Nodes)
}
