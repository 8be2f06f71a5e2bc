package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agenthands/sage/internal/graph/model"
)

// ErrStoreClosed is returned by writes against a closed store.
var ErrStoreClosed = errors.New("store closed")

// MemoryStore is an in-memory Store used by tests and throwaway graphs.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]model.ConceptNode
	edges  []model.RelationshipEdge // insertion order
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]model.ConceptNode),
	}
}

func (m *MemoryStore) BuildIndices(ctx context.Context) error { return nil }

func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.nodes = nil
	m.edges = nil
	return nil
}

func (m *MemoryStore) InsertNode(ctx context.Context, n *model.ConceptNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.nodes[n.ID] = *n
	return nil
}

func (m *MemoryStore) GetNode(ctx context.Context, id string) (*model.ConceptNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &n, nil
}

func (m *MemoryStore) NodesByName(ctx context.Context, name string) ([]model.ConceptNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := strings.ToLower(name)
	var out []model.ConceptNode
	for _, n := range m.nodes {
		if strings.ToLower(n.Name) == want {
			out = append(out, n)
			continue
		}
		for _, alias := range n.Aliases {
			if strings.ToLower(alias) == want {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateNode(ctx context.Context, n *model.ConceptNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if _, ok := m.nodes[n.ID]; !ok {
		return ErrRecordNotFound
	}
	m.nodes[n.ID] = *n
	return nil
}

func (m *MemoryStore) DeleteNodes(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	removed := 0
	for _, id := range ids {
		if _, ok := m.nodes[id]; ok {
			delete(m.nodes, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Children(ctx context.Context, parentID string) ([]model.ConceptNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ConceptNode
	for _, n := range m.nodes {
		if n.ParentID != nil && *n.ParentID == parentID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MemoryStore) SearchNodes(ctx context.Context, q model.NodeQuery) ([]model.ConceptNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(q.Query)
	var out []model.ConceptNode
	for _, n := range m.nodes {
		if q.NodeType != "" && n.NodeType != q.NodeType {
			continue
		}
		if q.BloomLevel != "" && n.BloomLevel != q.BloomLevel {
			continue
		}
		if q.Difficulty != "" && n.Difficulty != q.Difficulty {
			continue
		}
		if needle != "" && !nodeMatches(n, needle) {
			continue
		}
		out = append(out, n)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func nodeMatches(n model.ConceptNode, needle string) bool {
	if strings.Contains(strings.ToLower(n.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(n.Description), needle) {
		return true
	}
	for _, alias := range n.Aliases {
		if strings.Contains(strings.ToLower(alias), needle) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) InsertEdge(ctx context.Context, e *model.RelationshipEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.edges = append(m.edges, *e)
	return nil
}

func (m *MemoryStore) GetEdge(ctx context.Context, id string) (*model.RelationshipEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.edges {
		if m.edges[i].ID == id {
			e := m.edges[i]
			return &e, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) FindEdge(ctx context.Context, sourceID, targetID string, t model.RelationshipType) (*model.RelationshipEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.edges {
		e := m.edges[i]
		if e.SourceID == sourceID && e.TargetID == targetID && e.RelationshipType == t {
			return &e, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) ListEdges(ctx context.Context, f model.EdgeFilter) ([]model.RelationshipEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.RelationshipEdge
	for _, e := range m.edges {
		if edgeMatches(e, f) {
			out = append(out, e)
		}
	}
	return out, nil
}

func edgeMatches(e model.RelationshipEdge, f model.EdgeFilter) bool {
	if !f.MatchesType(e.RelationshipType) {
		return false
	}
	if f.Strength != "" && e.Strength != f.Strength {
		return false
	}
	if f.NodeID == "" {
		return true
	}
	switch f.Direction {
	case model.DirectionOutgoing:
		return e.SourceID == f.NodeID || (!e.IsDirected && e.TargetID == f.NodeID)
	case model.DirectionIncoming:
		return e.TargetID == f.NodeID || (!e.IsDirected && e.SourceID == f.NodeID)
	default:
		return e.SourceID == f.NodeID || e.TargetID == f.NodeID
	}
}

func (m *MemoryStore) UpdateEdge(ctx context.Context, e *model.RelationshipEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for i := range m.edges {
		if m.edges[i].ID == e.ID {
			m.edges[i] = *e
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *MemoryStore) DeleteEdge(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for i := range m.edges {
		if m.edges[i].ID == id {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *MemoryStore) DeleteEdgesTouching(ctx context.Context, nodeIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	touched := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		touched[id] = true
	}
	kept := m.edges[:0]
	removed := 0
	for _, e := range m.edges {
		if touched[e.SourceID] || touched[e.TargetID] {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	return removed, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*model.GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &model.GraphStats{
		TotalNodes:   len(m.nodes),
		TotalEdges:   len(m.edges),
		NodesByType:  make(map[model.NodeType]int),
		NodesByLevel: make(map[int]int),
		EdgesByType:  make(map[model.RelationshipType]int),
	}
	var taxonomized, withBloom, withDifficulty, withTime int
	for _, n := range m.nodes {
		stats.NodesByType[n.NodeType]++
		stats.NodesByLevel[n.HierarchyLevel]++
		if n.NodeType == model.NodeConcept || n.NodeType == model.NodeSkill {
			taxonomized++
			if n.BloomLevel != "" {
				withBloom++
			}
		}
		if n.Difficulty != "" {
			withDifficulty++
		}
		if n.EstimatedTimeMinutes != nil {
			withTime++
		}
	}
	for _, e := range m.edges {
		stats.EdgesByType[e.RelationshipType]++
	}
	if taxonomized > 0 {
		stats.BloomCoverage = float64(withBloom) / float64(taxonomized)
	}
	if len(m.nodes) > 0 {
		stats.DifficultyCoverage = float64(withDifficulty) / float64(len(m.nodes))
		stats.TimeCoverage = float64(withTime) / float64(len(m.nodes))
	}
	return stats, nil
}
