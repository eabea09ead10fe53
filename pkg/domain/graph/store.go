package graph

import (
	"fmt"
	"strings"
	"sync"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/google/uuid"
)

// Store owns the nodes, edges and live data of one editor session. It is safe
// for concurrent use; runs write live data from their own goroutines.
type Store struct {
	mu sync.RWMutex

	nodes     map[string]domain.Node
	nodeOrder []string
	edges     map[string]domain.Edge
	edgeOrder []string

	liveData map[string]map[string]any
}

func NewStore() *Store {
	return &Store{
		nodes:    make(map[string]domain.Node),
		edges:    make(map[string]domain.Edge),
		liveData: make(map[string]map[string]any),
	}
}

func (s *Store) AddNode(node domain.Node) (domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addNode(node)
}

func (s *Store) addNode(node domain.Node) (domain.Node, error) {
	if !node.Kind.IsValid() {
		return domain.Node{}, fmt.Errorf("%w: %q", domain.ErrUnknownNodeKind, node.Kind)
	}

	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	if _, exists := s.nodes[node.ID]; exists {
		return domain.Node{}, fmt.Errorf("%w: node %s", domain.ErrDuplicateID, node.ID)
	}

	if node.Data == nil {
		data, err := domain.DefaultNodeData(node.Kind)
		if err != nil {
			return domain.Node{}, err
		}

		node.Data = data
	}

	if node.Data.NodeKind() != node.Kind {
		return domain.Node{}, fmt.Errorf("%w: %s data on %s node", domain.ErrNodeDataMismatch, node.Data.NodeKind(), node.Kind)
	}

	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)

	return node, nil
}

func (s *Store) GetNode(id string) (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]

	return node, ok
}

func (s *Store) Nodes() []domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]domain.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		nodes = append(nodes, s.nodes[id])
	}

	return nodes
}

func (s *Store) Edges() []domain.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]domain.Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		edges = append(edges, s.edges[id])
	}

	return edges
}

// RemoveNode deletes the node and every edge touching it and reports whether
// the node existed. Live data of the node is kept so that undoing the removal
// shows the previous results.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return false
	}

	for _, edgeID := range append([]string(nil), s.edgeOrder...) {
		edge := s.edges[edgeID]
		if edge.Source == id || edge.Target == id {
			s.removeEdge(edgeID)
		}
	}

	delete(s.nodes, id)
	s.nodeOrder = removeID(s.nodeOrder, id)

	return true
}

func (s *Store) UpdateNodeData(id string, data domain.NodeData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}

	if data == nil || data.NodeKind() != node.Kind {
		return fmt.Errorf("%w: node %s is %s", domain.ErrNodeDataMismatch, id, node.Kind)
	}

	node.Data = data
	s.nodes[id] = node

	return nil
}

func (s *Store) MoveNode(id string, position domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}

	node.Position = position
	s.nodes[id] = node

	return nil
}

// AddEdge inserts an edge into a free target handle. An occupied handle is
// reported with ErrDuplicateTarget and the graph is left unchanged.
func (s *Store) AddEdge(edge domain.Edge) (domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateEdge(edge); err != nil {
		return domain.Edge{}, err
	}

	if existing, ok := s.incomingEdge(edge.Target, edge.TargetHandle); ok {
		return domain.Edge{}, fmt.Errorf("%w: %s.%s is fed by edge %s", domain.ErrDuplicateTarget, edge.Target, edge.TargetHandle, existing.ID)
	}

	return s.insertEdge(edge)
}

// Connect inserts an edge, replacing whatever edge already feeds the target
// handle. The replaced edge is returned when there was one.
func (s *Store) Connect(edge domain.Edge) (domain.Edge, *domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateEdge(edge); err != nil {
		return domain.Edge{}, nil, err
	}

	var replaced *domain.Edge

	if existing, ok := s.incomingEdge(edge.Target, edge.TargetHandle); ok {
		if existing.ID == edge.ID {
			return domain.Edge{}, nil, fmt.Errorf("%w: edge %s", domain.ErrDuplicateID, edge.ID)
		}

		s.removeEdge(existing.ID)
		replaced = &existing
	}

	created, err := s.insertEdge(edge)
	if err != nil {
		if replaced != nil {
			s.edges[replaced.ID] = *replaced
			s.edgeOrder = append(s.edgeOrder, replaced.ID)
		}

		return domain.Edge{}, nil, err
	}

	return created, replaced, nil
}

func (s *Store) validateEdge(edge domain.Edge) error {
	source, ok := s.nodes[edge.Source]
	if !ok {
		return fmt.Errorf("%w: source %s", domain.ErrNodeNotFound, edge.Source)
	}

	target, ok := s.nodes[edge.Target]
	if !ok {
		return fmt.Errorf("%w: target %s", domain.ErrNodeNotFound, edge.Target)
	}

	if !IsValidConnection(source, edge.SourceHandle, target, edge.TargetHandle) {
		return fmt.Errorf("%w: %s.%s (%s) -> %s.%s (%s)", domain.ErrInvalidConnection,
			source.ID, edge.SourceHandle, source.Kind, target.ID, edge.TargetHandle, target.Kind)
	}

	if s.reachable(edge.Target, edge.Source) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConnection, domain.ErrCycleDetected)
	}

	return nil
}

func (s *Store) insertEdge(edge domain.Edge) (domain.Edge, error) {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	if _, exists := s.edges[edge.ID]; exists {
		return domain.Edge{}, fmt.Errorf("%w: edge %s", domain.ErrDuplicateID, edge.ID)
	}

	s.edges[edge.ID] = edge
	s.edgeOrder = append(s.edgeOrder, edge.ID)

	return edge, nil
}

// reachable reports whether to can be reached from from by following edges.
func (s *Store) reachable(from, to string) bool {
	visited := make(map[string]bool)
	stack := []string{from}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == to {
			return true
		}

		if visited[current] {
			continue
		}
		visited[current] = true

		for _, id := range s.edgeOrder {
			edge := s.edges[id]
			if edge.Source == current && !visited[edge.Target] {
				stack = append(stack, edge.Target)
			}
		}
	}

	return false
}

func (s *Store) RemoveEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrEdgeNotFound, id)
	}

	s.removeEdge(id)

	return nil
}

func (s *Store) removeEdge(id string) {
	delete(s.edges, id)
	s.edgeOrder = removeID(s.edgeOrder, id)
}

func (s *Store) IncomingEdge(nodeID, handle string) (domain.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.incomingEdge(nodeID, handle)
}

func (s *Store) incomingEdge(nodeID, handle string) (domain.Edge, bool) {
	for _, id := range s.edgeOrder {
		edge := s.edges[id]
		if edge.Target == nodeID && edge.TargetHandle == handle {
			return edge, true
		}
	}

	return domain.Edge{}, false
}

// SetLiveData merges fields into the node's live data, last write wins.
func (s *Store) SetLiveData(nodeID string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.liveData[nodeID]
	if !ok {
		data = make(map[string]any, len(fields))
		s.liveData[nodeID] = data
	}

	for field, value := range fields {
		data[field] = value
	}
}

// ClearLiveFields removes the named fields from a node's live data.
func (s *Store) ClearLiveFields(nodeID string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.liveData[nodeID]
	if !ok {
		return
	}

	for _, field := range fields {
		delete(data, field)
	}

	if len(data) == 0 {
		delete(s.liveData, nodeID)
	}
}

func (s *Store) LiveData(nodeID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := make(map[string]any, len(s.liveData[nodeID]))
	for field, value := range s.liveData[nodeID] {
		data[field] = value
	}

	return data
}

func (s *Store) AllLiveData() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string]map[string]any, len(s.liveData))
	for nodeID, fields := range s.liveData {
		data := make(map[string]any, len(fields))
		for field, value := range fields {
			data[field] = value
		}

		all[nodeID] = data
	}

	return all
}

// ResolveInput pulls the value feeding handle of nodeID: the output field of
// the connected source node, read from live data.
func (s *Store) ResolveInput(nodeID, handle string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.incomingEdge(nodeID, handle)
	if !ok {
		return nil, false
	}

	source, ok := s.nodes[edge.Source]
	if !ok {
		return nil, false
	}

	handles, ok := domain.GetNodeHandles(source.Kind)
	if !ok {
		return nil, false
	}

	output, ok := handles.Output(edge.SourceHandle)
	if !ok {
		return nil, false
	}

	value, ok := s.liveData[source.ID][output.Field]

	return value, ok
}

// ResolveString is ResolveInput for text-like values. Blank strings count as
// absent.
func (s *Store) ResolveString(nodeID, handle string) (string, bool) {
	value, ok := s.ResolveInput(nodeID, handle)
	if !ok {
		return "", false
	}

	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", false
	}

	return str, true
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := domain.Snapshot{
		Nodes: make([]domain.Node, 0, len(s.nodeOrder)),
		Edges: make([]domain.Edge, 0, len(s.edgeOrder)),
	}

	for _, id := range s.nodeOrder {
		snapshot.Nodes = append(snapshot.Nodes, s.nodes[id])
	}

	for _, id := range s.edgeOrder {
		snapshot.Edges = append(snapshot.Edges, s.edges[id])
	}

	return snapshot
}

// Restore replaces nodes and edges with the snapshot as-is. Live data is left
// alone.
func (s *Store) Restore(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]domain.Node, len(snapshot.Nodes))
	s.nodeOrder = make([]string, 0, len(snapshot.Nodes))
	s.edges = make(map[string]domain.Edge, len(snapshot.Edges))
	s.edgeOrder = make([]string, 0, len(snapshot.Edges))

	for _, node := range snapshot.Nodes {
		s.nodes[node.ID] = node
		s.nodeOrder = append(s.nodeOrder, node.ID)
	}

	for _, edge := range snapshot.Edges {
		s.edges[edge.ID] = edge
		s.edgeOrder = append(s.edgeOrder, edge.ID)
	}
}

// Load validates snapshot against the graph rules and, if it passes,
// replaces the structure with it. Live data is cleared.
func (s *Store) Load(snapshot domain.Snapshot) error {
	fresh := NewStore()

	for _, node := range snapshot.Nodes {
		if _, err := fresh.addNode(node); err != nil {
			return fmt.Errorf("failed to load node %s: %w", node.ID, err)
		}
	}

	for _, edge := range snapshot.Edges {
		if _, err := fresh.AddEdge(edge); err != nil {
			return fmt.Errorf("failed to load edge %s: %w", edge.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = fresh.nodes
	s.nodeOrder = fresh.nodeOrder
	s.edges = fresh.edges
	s.edgeOrder = fresh.edgeOrder
	s.liveData = make(map[string]map[string]any)

	return nil
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}

	return ids
}
