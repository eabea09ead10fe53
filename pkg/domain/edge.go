package domain

type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// Snapshot is the structural part of a graph. It is what gets persisted and
// what the history stacks hold.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (s Snapshot) Clone() Snapshot {
	clone := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}

	copy(clone.Nodes, s.Nodes)
	copy(clone.Edges, s.Edges)

	return clone
}

// Equal compares two snapshots including order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Nodes) != len(other.Nodes) || len(s.Edges) != len(other.Edges) {
		return false
	}

	for i := range s.Nodes {
		if s.Nodes[i] != other.Nodes[i] {
			return false
		}
	}

	for i := range s.Edges {
		if s.Edges[i] != other.Edges[i] {
			return false
		}
	}

	return true
}
