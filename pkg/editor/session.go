package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/domain/executor"
	"github.com/flowbaker/weave/pkg/domain/graph"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type SessionDependencies struct {
	ID         string
	UserID     string
	WorkflowID string

	JobRunner      domain.JobRunner
	Cropper        domain.ImageCropper
	Uploader       domain.MediaUploader
	EventPublisher domain.EventPublisher

	PollConfig        executor.PollConfig
	Wait              executor.WaitFunc
	MaxConcurrentRuns int64
	HistoryDepth      int
}

// Session is the context of one editor: its graph, history, execution state
// and runner. Nothing is shared between sessions.
type Session struct {
	ID     string
	UserID string

	store    *graph.Store
	history  *graph.History
	tracker  *executor.ExecutionTracker
	runner   *executor.NodeRunner
	uploader domain.MediaUploader
	recorder *executor.HistoryRecorder

	// mu serializes structural edits so that each history entry matches the
	// state right before its edit.
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	activityMu   sync.Mutex
	lastActiveAt time.Time
	workflowID   string
}

func NewSession(deps SessionDependencies) *Session {
	id := deps.ID
	if id == "" {
		id = uuid.NewString()
	}

	store := graph.NewStore()
	tracker := executor.NewExecutionTracker()
	recorder := executor.NewHistoryRecorder()

	observer := executor.NewExecutionObserver()
	observer.Subscribe(recorder)
	observer.Subscribe(executor.NewRunLogger(id))

	if deps.EventPublisher != nil {
		observer.Subscribe(executor.NewEventBroadcaster(deps.EventPublisher, id))
	}

	var bridge *executor.JobBridge
	if deps.JobRunner != nil {
		bridge = executor.NewJobBridge(executor.JobBridgeDependencies{
			Runner:     deps.JobRunner,
			PollConfig: deps.PollConfig,
			Wait:       deps.Wait,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		ID:      id,
		UserID:  deps.UserID,
		store:   store,
		history: graph.NewHistory(store, graph.WithMaxDepth(deps.HistoryDepth)),
		tracker: tracker,
		runner: executor.NewNodeRunner(executor.NodeRunnerDependencies{
			Graph:             store,
			Tracker:           tracker,
			Bridge:            bridge,
			Cropper:           deps.Cropper,
			Observer:          observer,
			MaxConcurrentRuns: deps.MaxConcurrentRuns,
		}),
		uploader:     deps.Uploader,
		recorder:     recorder,
		ctx:          ctx,
		cancel:       cancel,
		lastActiveAt: time.Now(),
		workflowID:   deps.WorkflowID,
	}
}

// edit records the structure before mutate and keeps it in history only when
// mutate succeeds.
func (s *Session) edit(mutate func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()

	before := s.store.Snapshot()

	if err := mutate(); err != nil {
		return err
	}

	s.history.Record(before)

	return nil
}

func (s *Session) AddNode(node domain.Node) (domain.Node, error) {
	var added domain.Node

	err := s.edit(func() error {
		var err error

		added, err = s.store.AddNode(node)
		return err
	})
	if err != nil {
		return domain.Node{}, err
	}

	s.seedLiveData(added)

	return added, nil
}

var errUnchanged = errors.New("graph unchanged")

// RemoveNode is a no-op for unknown ids and leaves history untouched.
func (s *Session) RemoveNode(nodeID string) error {
	err := s.edit(func() error {
		if !s.store.RemoveNode(nodeID) {
			return errUnchanged
		}

		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}

	if err != nil {
		return err
	}

	s.tracker.Reset(nodeID)

	return nil
}

// UpdateNodeData replaces the static data of a node. Text and prompt nodes
// publish their text to live data right away.
func (s *Session) UpdateNodeData(nodeID string, data domain.NodeData) error {
	err := s.edit(func() error {
		return s.store.UpdateNodeData(nodeID, data)
	})
	if err != nil {
		return err
	}

	if node, ok := s.store.GetNode(nodeID); ok {
		s.seedLiveData(node)
	}

	return nil
}

func (s *Session) MoveNode(nodeID string, position domain.Position) error {
	return s.edit(func() error {
		return s.store.MoveNode(nodeID, position)
	})
}

// Connect adds an edge, replacing the edge that already feeds the target
// handle.
func (s *Session) Connect(edge domain.Edge) (domain.Edge, *domain.Edge, error) {
	var (
		created  domain.Edge
		replaced *domain.Edge
	)

	err := s.edit(func() error {
		var err error

		created, replaced, err = s.store.Connect(edge)
		return err
	})
	if err != nil {
		return domain.Edge{}, nil, err
	}

	return created, replaced, nil
}

func (s *Session) RemoveEdge(edgeID string) error {
	return s.edit(func() error {
		return s.store.RemoveEdge(edgeID)
	})
}

func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()

	if !s.history.Undo() {
		return false
	}

	s.reseedTextOutputs()

	return true
}

func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()

	if !s.history.Redo() {
		return false
	}

	s.reseedTextOutputs()

	return true
}

// Load replaces the graph with snapshot, clearing history, live data and
// execution state.
func (s *Session) Load(snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()

	for nodeID, execution := range s.tracker.All() {
		if execution.State == domain.ExecutionStateRunning {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, nodeID)
		}
	}

	if err := s.store.Load(snapshot); err != nil {
		return err
	}

	for nodeID := range s.tracker.All() {
		s.tracker.Reset(nodeID)
	}

	s.history.Clear()

	for _, node := range s.store.Nodes() {
		s.seedLiveData(node)
	}

	return nil
}

// Run starts the node in the background. The run lives as long as the
// session, not as long as ctx; ctx only carries request-scoped values.
func (s *Session) Run(ctx context.Context, nodeID string) (*executor.Run, error) {
	s.touch()

	return s.runner.Start(s.ctx, nodeID)
}

type UploadParams struct {
	FileName    string
	ContentType string
	Reader      io.Reader
}

// Upload sends a file for an image or video upload node to the media host
// and publishes the hosted URL.
func (s *Session) Upload(ctx context.Context, nodeID string, params UploadParams) (domain.UploadedMedia, error) {
	s.touch()

	node, ok := s.store.GetNode(nodeID)
	if !ok {
		return domain.UploadedMedia{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	var resourceType domain.ResourceType

	switch node.Kind {
	case domain.NodeKindImageUpload:
		resourceType = domain.ResourceTypeImage
	case domain.NodeKindVideoUpload:
		resourceType = domain.ResourceTypeVideo
	default:
		return domain.UploadedMedia{}, domain.NewValidationError(nodeID, "file", fmt.Sprintf("%s nodes do not accept uploads", node.Kind))
	}

	if s.uploader == nil {
		return domain.UploadedMedia{}, fmt.Errorf("no media uploader configured")
	}

	if err := s.tracker.Begin(nodeID); err != nil {
		return domain.UploadedMedia{}, err
	}

	media, err := s.uploader.Upload(ctx, domain.UploadMediaParams{
		FileName:     params.FileName,
		ContentType:  params.ContentType,
		ResourceType: resourceType,
		Reader:       params.Reader,
	})
	if err != nil {
		if failErr := s.tracker.Fail(nodeID, err); failErr != nil {
			log.Error().Err(failErr).Str("node_id", nodeID).Msg("Failed to mark upload failed")
		}

		return domain.UploadedMedia{}, fmt.Errorf("failed to upload media: %w", err)
	}

	var data domain.NodeData
	if resourceType == domain.ResourceTypeImage {
		data = domain.ImageUploadData{ImageURL: media.URL}
	} else {
		data = domain.VideoUploadData{MediaURL: media.URL, MediaType: media.MediaType}
	}

	if err := s.UpdateNodeData(nodeID, data); err != nil {
		if failErr := s.tracker.Fail(nodeID, err); failErr != nil {
			log.Error().Err(failErr).Str("node_id", nodeID).Msg("Failed to mark upload failed")
		}

		return domain.UploadedMedia{}, err
	}

	if err := s.tracker.Complete(nodeID); err != nil {
		log.Error().Err(err).Str("node_id", nodeID).Msg("Failed to mark upload completed")
	}

	return media, nil
}

// seedLiveData publishes the outputs that come straight from static data. An
// upload node whose URL was cleared stops publishing media.
func (s *Session) seedLiveData(node domain.Node) {
	switch data := node.Data.(type) {
	case domain.TextData:
		s.store.SetLiveData(node.ID, map[string]any{domain.FieldText: data.Text})
	case domain.PromptData:
		s.store.SetLiveData(node.ID, map[string]any{domain.FieldText: data.Prompt})
	case domain.ImageUploadData:
		if data.ImageURL == "" {
			s.store.ClearLiveFields(node.ID, domain.FieldImageURL)
			return
		}

		s.store.SetLiveData(node.ID, map[string]any{domain.FieldImageURL: data.ImageURL})
	case domain.VideoUploadData:
		if data.MediaURL == "" {
			s.store.ClearLiveFields(node.ID, domain.FieldMediaURL, domain.FieldMediaType)
			return
		}

		s.store.SetLiveData(node.ID, map[string]any{
			domain.FieldMediaURL:  data.MediaURL,
			domain.FieldMediaType: data.MediaType,
		})
	}
}

// reseedTextOutputs republishes text and prompt nodes after their static
// data was restored from history. Other live data is left as it was.
func (s *Session) reseedTextOutputs() {
	for _, node := range s.store.Nodes() {
		switch node.Data.(type) {
		case domain.TextData, domain.PromptData:
			s.seedLiveData(node)
		}
	}
}

type SessionState struct {
	ID         string                          `json:"id"`
	WorkflowID string                          `json:"workflow_id,omitempty"`
	Nodes      []domain.Node                   `json:"nodes"`
	Edges      []domain.Edge                   `json:"edges"`
	LiveData   map[string]map[string]any       `json:"live_data"`
	Executions map[string]domain.NodeExecution `json:"executions"`
	CanUndo    bool                            `json:"can_undo"`
	CanRedo    bool                            `json:"can_redo"`
}

func (s *Session) State() SessionState {
	snapshot := s.store.Snapshot()

	return SessionState{
		ID:         s.ID,
		WorkflowID: s.WorkflowID(),
		Nodes:      snapshot.Nodes,
		Edges:      snapshot.Edges,
		LiveData:   s.store.AllLiveData(),
		Executions: s.tracker.All(),
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
	}
}

func (s *Session) Snapshot() domain.Snapshot {
	return s.store.Snapshot()
}

func (s *Session) Node(nodeID string) (domain.Node, bool) {
	return s.store.GetNode(nodeID)
}

func (s *Session) Execution(nodeID string) domain.NodeExecution {
	return s.tracker.Get(nodeID)
}

func (s *Session) LiveData(nodeID string) map[string]any {
	return s.store.LiveData(nodeID)
}

func (s *Session) RunHistory() []executor.RunHistoryEntry {
	return s.recorder.GetHistoryEntries()
}

// Close cancels every run of the session. Cancelled runs end as failed.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) HasRunningNodes() bool {
	for _, execution := range s.tracker.All() {
		if execution.State == domain.ExecutionStateRunning {
			return true
		}
	}

	return false
}

func (s *Session) LastActiveAt() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()

	return s.lastActiveAt
}

func (s *Session) touch() {
	s.activityMu.Lock()
	s.lastActiveAt = time.Now()
	s.activityMu.Unlock()
}

// WorkflowID is the saved workflow the session edits, empty until the first
// save of a new graph.
func (s *Session) WorkflowID() string {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()

	return s.workflowID
}

func (s *Session) BindWorkflow(workflowID string) {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()

	s.workflowID = workflowID
}
