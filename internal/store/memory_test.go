package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/sage/internal/graph/model"
)

func seedNode(t *testing.T, m *MemoryStore, id, name string) *model.ConceptNode {
	t.Helper()
	n := &model.ConceptNode{ID: id, Name: name, NodeType: model.NodeConcept, HierarchyLevel: 5}
	require.NoError(t, m.InsertNode(context.Background(), n))
	return n
}

func seedEdge(t *testing.T, m *MemoryStore, id, source, target string, typ model.RelationshipType) {
	t.Helper()
	require.NoError(t, m.InsertEdge(context.Background(), &model.RelationshipEdge{
		ID: id, SourceID: source, TargetID: target, RelationshipType: typ,
		IsDirected: !typ.Symmetric(),
	}))
}

func TestMemoryStoreNodeRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedNode(t, m, "n1", "Pointers")

	got, err := m.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Pointers", got.Name)

	_, err = m.GetNode(ctx, "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	got.Description = "indirection"
	require.NoError(t, m.UpdateNode(ctx, got))
	again, err := m.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "indirection", again.Description)

	assert.ErrorIs(t, m.UpdateNode(ctx, &model.ConceptNode{ID: "nope"}), ErrRecordNotFound)

	removed, err := m.DeleteNodes(ctx, []string{"n1", "nope"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "only existing nodes count")
}

func TestMemoryStoreListEdgesInsertionOrder(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		seedNode(t, m, fmt.Sprintf("n%d", i), fmt.Sprintf("N%d", i))
	}
	seedEdge(t, m, "e1", "n0", "n1", model.RelEnables)
	seedEdge(t, m, "e2", "n0", "n2", model.RelEnables)
	seedEdge(t, m, "e3", "n0", "n3", model.RelPrerequisite)

	edges, err := m.ListEdges(ctx, model.EdgeFilter{NodeID: "n0", Direction: model.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{edges[0].ID, edges[1].ID, edges[2].ID})

	enables, err := m.ListEdges(ctx, model.EdgeFilter{
		NodeID: "n0", Direction: model.DirectionOutgoing,
		Types: []model.RelationshipType{model.RelEnables},
	})
	require.NoError(t, err)
	assert.Len(t, enables, 2)
}

func TestMemoryStoreUndirectedEdgesMatchBothWays(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedNode(t, m, "a", "A")
	seedNode(t, m, "b", "B")
	seedEdge(t, m, "sym", "a", "b", model.RelSimilarTo)

	// An undirected edge is visible from either endpoint in either direction.
	for _, nodeID := range []string{"a", "b"} {
		for _, dir := range []model.EdgeDirection{model.DirectionOutgoing, model.DirectionIncoming, model.DirectionBoth} {
			edges, err := m.ListEdges(ctx, model.EdgeFilter{NodeID: nodeID, Direction: dir})
			require.NoError(t, err)
			assert.Len(t, edges, 1, "node %s direction %s", nodeID, dir)
		}
	}
}

func TestMemoryStoreFindEdge(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedNode(t, m, "a", "A")
	seedNode(t, m, "b", "B")
	seedEdge(t, m, "e1", "a", "b", model.RelPrerequisite)

	found, err := m.FindEdge(ctx, "a", "b", model.RelPrerequisite)
	require.NoError(t, err)
	assert.Equal(t, "e1", found.ID)

	_, err = m.FindEdge(ctx, "b", "a", model.RelPrerequisite)
	assert.ErrorIs(t, err, ErrRecordNotFound, "the triple is ordered")
	_, err = m.FindEdge(ctx, "a", "b", model.RelEnables)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStoreDeleteEdgesTouching(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		seedNode(t, m, id, id)
	}
	seedEdge(t, m, "e1", "a", "b", model.RelEnables)
	seedEdge(t, m, "e2", "b", "c", model.RelEnables)
	seedEdge(t, m, "e3", "c", "a", model.RelEnables)

	removed, err := m.DeleteEdgesTouching(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := m.ListEdges(ctx, model.EdgeFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "e3", left[0].ID)
}

func TestMemoryStoreSearchLimit(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seedNode(t, m, fmt.Sprintf("n%d", i), fmt.Sprintf("Sorting %d", i))
	}

	out, err := m.SearchNodes(ctx, model.NodeQuery{Query: "sorting", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestMemoryStoreCloseRejectsWrites(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedNode(t, m, "a", "A")
	seedNode(t, m, "b", "B")
	require.NoError(t, m.Close(ctx))

	err := m.InsertNode(ctx, &model.ConceptNode{ID: "c", Name: "C"})
	assert.ErrorIs(t, err, ErrStoreClosed)

	err = m.InsertEdge(ctx, &model.RelationshipEdge{ID: "e1", SourceID: "a", TargetID: "b", RelationshipType: model.RelEnables})
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = m.DeleteNodes(ctx, []string{"a"})
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = m.DeleteEdgesTouching(ctx, []string{"a"})
	assert.ErrorIs(t, err, ErrStoreClosed)
}
