package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/logger"
	"github.com/agenthands/sage/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(store.NewMemoryStore(), logger.NewNop())
}

// mustNode creates a node under an optional parent and fails the test on error.
func mustNode(t *testing.T, e *Engine, name string, typ model.NodeType, level int, parent *model.ConceptNode) *model.ConceptNode {
	t.Helper()
	n := model.ConceptNode{Name: name, NodeType: typ, HierarchyLevel: level}
	if parent != nil {
		n.ParentID = &parent.ID
	}
	created, err := e.CreateNode(context.Background(), n)
	require.NoError(t, err)
	return created
}

// mustConcept creates a level-5 concept with no parent.
func mustConcept(t *testing.T, e *Engine, name string) *model.ConceptNode {
	t.Helper()
	return mustNode(t, e, name, model.NodeConcept, 5, nil)
}

func mustEdge(t *testing.T, e *Engine, source, target *model.ConceptNode, typ model.RelationshipType, strength model.PrerequisiteStrength) *model.RelationshipEdge {
	t.Helper()
	edge, err := e.CreateRelationship(context.Background(), model.RelationshipEdge{
		SourceID:         source.ID,
		TargetID:         target.ID,
		RelationshipType: typ,
		Strength:         strength,
	})
	require.NoError(t, err)
	return edge
}

func TestCreateNodeAssignsIDAndTimestamps(t *testing.T) {
	e := newTestEngine(t)
	n := mustConcept(t, e, "Recursion")

	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	got, err := e.Node(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Recursion", got.Name)
	assert.Equal(t, model.NodeConcept, got.NodeType)
}

func TestCreateNodeValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateNode(ctx, model.ConceptNode{NodeType: model.NodeConcept, HierarchyLevel: 5})
	assert.True(t, IsValidation(err, ReasonMissingRequiredField), "empty name: %v", err)

	_, err = e.CreateNode(ctx, model.ConceptNode{Name: "X", NodeType: "chapter", HierarchyLevel: 5})
	assert.True(t, IsValidation(err, ReasonInvalidEnumValue), "bad node type: %v", err)

	_, err = e.CreateNode(ctx, model.ConceptNode{Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 6})
	assert.True(t, IsValidation(err, ReasonOutOfRangeValue), "level 6: %v", err)

	_, err = e.CreateNode(ctx, model.ConceptNode{Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 0})
	assert.True(t, IsValidation(err, ReasonOutOfRangeValue), "level 0: %v", err)

	bad := -1
	_, err = e.CreateNode(ctx, model.ConceptNode{Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 5, EstimatedTimeMinutes: &bad})
	assert.True(t, IsValidation(err, ReasonOutOfRangeValue), "negative time: %v", err)

	w := 1.5
	_, err = e.CreateNode(ctx, model.ConceptNode{Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 5, ImportanceWeight: &w})
	assert.True(t, IsValidation(err, ReasonOutOfRangeValue), "weight > 1: %v", err)
}

func TestHierarchyRules(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "Computer Science", model.NodeDomain, 1, nil)

	// A root must not have a parent.
	_, err := e.CreateNode(ctx, model.ConceptNode{
		Name: "Mathematics", NodeType: model.NodeDomain, HierarchyLevel: 1, ParentID: &domain.ID,
	})
	assert.True(t, IsValidation(err, ReasonRootMustHaveNoParent), "%v", err)

	// A child must sit exactly one level below its parent.
	_, err = e.CreateNode(ctx, model.ConceptNode{
		Name: "Algorithms", NodeType: model.NodeTopic, HierarchyLevel: 4, ParentID: &domain.ID,
	})
	assert.True(t, IsValidation(err, ReasonHierarchyMismatch), "%v", err)

	course := mustNode(t, e, "Intro to Programming", model.NodeCourse, 2, domain)
	assert.Equal(t, domain.ID, *course.ParentID)

	// A dangling parent id is a not-found, not a validation error.
	ghost := "no-such-node"
	_, err = e.CreateNode(ctx, model.ConceptNode{
		Name: "Orphan", NodeType: model.NodeCourse, HierarchyLevel: 2, ParentID: &ghost,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateNodeAppliesPatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	n := mustConcept(t, e, "Loops")

	desc := "Iteration constructs"
	diff := model.DifficultyBeginner
	bloom := model.BloomApply
	mins := 45
	updated, err := e.UpdateNode(ctx, n.ID, NodePatch{
		Description:          &desc,
		Difficulty:           &diff,
		BloomLevel:           &bloom,
		EstimatedTimeMinutes: &mins,
	})
	require.NoError(t, err)
	assert.Equal(t, "Iteration constructs", updated.Description)
	assert.Equal(t, model.DifficultyBeginner, updated.Difficulty)
	assert.Equal(t, model.BloomApply, updated.BloomLevel)
	assert.Equal(t, 45, *updated.EstimatedTimeMinutes)
	assert.Equal(t, "Loops", updated.Name, "unpatched fields stay")

	badBloom := model.BloomLevel("memorize")
	_, err = e.UpdateNode(ctx, n.ID, NodePatch{BloomLevel: &badBloom})
	assert.True(t, IsValidation(err, ReasonInvalidEnumValue), "%v", err)

	_, err = e.UpdateNode(ctx, "missing", NodePatch{Description: &desc})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateNodeRejectsSelfParent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "CS", model.NodeDomain, 1, nil)
	course := mustNode(t, e, "Compilers", model.NodeCourse, 2, domain)

	// Pointing a node at itself while bumping the level one step satisfies the
	// parent-level check against the stale stored row; it must still be
	// rejected outright.
	lvl := 3
	_, err := e.UpdateNode(ctx, course.ID, NodePatch{ParentID: &course.ID, HierarchyLevel: &lvl})
	assert.True(t, IsValidation(err, ReasonHierarchyMismatch), "%v", err)

	unchanged, err := e.Node(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unchanged.HierarchyLevel)
	assert.Equal(t, domain.ID, *unchanged.ParentID)

	// The hierarchy walks stay well-behaved afterwards.
	desc, err := e.Descendants(ctx, domain.ID)
	require.NoError(t, err)
	assert.Len(t, desc, 1)
	result, err := e.DeleteNode(ctx, domain.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NodesRemoved)
}

func TestDescendantsTerminateOnCorruptedParentLink(t *testing.T) {
	// Seed a self-parent row directly at the store layer, below the engine's
	// validation, and check the walks still return.
	st := store.NewMemoryStore()
	e := NewEngine(st, logger.NewNop())
	ctx := context.Background()

	selfID := "corrupt"
	require.NoError(t, st.InsertNode(ctx, &model.ConceptNode{
		ID: selfID, Name: "Corrupt", NodeType: model.NodeCourse,
		HierarchyLevel: 2, ParentID: &selfID,
	}))

	desc, err := e.Descendants(ctx, selfID)
	require.NoError(t, err)
	assert.Empty(t, desc)

	result, err := e.DeleteNode(ctx, selfID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NodesRemoved)
}

func TestUpdateNodeRejectsLevelChangeThatStrandsChildren(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "Math", model.NodeDomain, 1, nil)
	course := mustNode(t, e, "Calculus", model.NodeCourse, 2, domain)
	mustNode(t, e, "Limits", model.NodeModule, 3, course)

	lvl := 3
	_, err := e.UpdateNode(ctx, course.ID, NodePatch{HierarchyLevel: &lvl})
	assert.True(t, IsValidation(err, ReasonHierarchyMismatch), "%v", err)
}

func TestDeleteNodeCascades(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "CS", model.NodeDomain, 1, nil)
	course := mustNode(t, e, "Data Structures", model.NodeCourse, 2, domain)
	mod := mustNode(t, e, "Trees", model.NodeModule, 3, course)
	topic := mustNode(t, e, "BST", model.NodeTopic, 4, mod)
	outside := mustConcept(t, e, "Hashing")

	mustEdge(t, e, topic, outside, model.RelRelatedTo, "")

	// Removing the course takes the module, the topic and the incident edge.
	result, err := e.DeleteNode(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.NodesRemoved)
	assert.Equal(t, 1, result.EdgesRemoved)

	_, err = e.Node(ctx, topic.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.Node(ctx, domain.ID)
	assert.NoError(t, err, "ancestors survive")
	_, err = e.Node(ctx, outside.ID)
	assert.NoError(t, err, "edge neighbors survive")

	// Deleting again reports not found.
	_, err = e.DeleteNode(ctx, course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNodesByNameMatchesAliases(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.CreateNode(ctx, model.ConceptNode{
		Name: "Big-O Notation", NodeType: model.NodeConcept, HierarchyLevel: 5,
		Aliases: []string{"asymptotic notation", "Landau notation"},
	})
	require.NoError(t, err)

	byName, err := e.NodesByName(ctx, "big-o notation")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, created.ID, byName[0].ID)

	byAlias, err := e.NodesByName(ctx, "LANDAU NOTATION")
	require.NoError(t, err)
	require.Len(t, byAlias, 1)
	assert.Equal(t, created.ID, byAlias[0].ID)

	none, err := e.NodesByName(ctx, "small-o notation")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchNodesFilters(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateNode(ctx, model.ConceptNode{
		Name: "Sorting", NodeType: model.NodeConcept, HierarchyLevel: 5,
		Difficulty: model.DifficultyBeginner, BloomLevel: model.BloomUnderstand,
	})
	require.NoError(t, err)
	_, err = e.CreateNode(ctx, model.ConceptNode{
		Name: "Sorting Networks", NodeType: model.NodeConcept, HierarchyLevel: 5,
		Difficulty: model.DifficultyAdvanced,
	})
	require.NoError(t, err)

	all, err := e.SearchNodes(ctx, model.NodeQuery{Query: "sorting"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	advanced, err := e.SearchNodes(ctx, model.NodeQuery{Query: "sorting", Difficulty: model.DifficultyAdvanced})
	require.NoError(t, err)
	require.Len(t, advanced, 1)
	assert.Equal(t, "Sorting Networks", advanced[0].Name)

	_, err = e.SearchNodes(ctx, model.NodeQuery{NodeType: "chapter"})
	assert.True(t, IsValidation(err, ReasonInvalidEnumValue), "%v", err)
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustNode(t, e, "CS", model.NodeDomain, 1, nil)
	mins := 30
	withMeta, err := e.CreateNode(ctx, model.ConceptNode{
		Name: "Recursion", NodeType: model.NodeConcept, HierarchyLevel: 5,
		BloomLevel: model.BloomApply, Difficulty: model.DifficultyIntermediate,
		EstimatedTimeMinutes: &mins,
	})
	require.NoError(t, err)
	bare := mustConcept(t, e, "Iteration")
	mustEdge(t, e, withMeta, bare, model.RelSimilarTo, "")

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalNodes)
	assert.Equal(t, 1, stats.TotalEdges)
	assert.Equal(t, 1, stats.NodesByType[model.NodeDomain])
	assert.Equal(t, 2, stats.NodesByType[model.NodeConcept])
	assert.Equal(t, 1, stats.NodesByLevel[1])
	assert.Equal(t, 2, stats.NodesByLevel[5])
	assert.Equal(t, 1, stats.EdgesByType[model.RelSimilarTo])
	// Bloom coverage counts only concept and skill nodes.
	assert.InDelta(t, 0.5, stats.BloomCoverage, 1e-9)
	assert.InDelta(t, 1.0/3.0, stats.DifficultyCoverage, 1e-9)
	assert.InDelta(t, 1.0/3.0, stats.TimeCoverage, 1e-9)
}

func TestProvenanceValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateNode(ctx, model.ConceptNode{
		Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 5,
		Provenance: &model.Provenance{ExtractionMethod: "guessed"},
	})
	assert.True(t, IsValidation(err, ReasonInvalidEnumValue), "%v", err)

	_, err = e.CreateNode(ctx, model.ConceptNode{
		Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 5,
		Provenance: &model.Provenance{ExtractionMethod: model.ExtractionManual, ConfidenceScore: 1.2},
	})
	assert.True(t, IsValidation(err, ReasonOutOfRangeValue), "%v", err)

	n, err := e.CreateNode(ctx, model.ConceptNode{
		Name: "X", NodeType: model.NodeConcept, HierarchyLevel: 5,
		Provenance: &model.Provenance{
			SourceDocument: "notes.pdf", ExtractionMethod: model.ExtractionLLM, ConfidenceScore: 0.9,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.pdf", n.Provenance.SourceDocument)
}

func TestStorageErrorUnwraps(t *testing.T) {
	wrapped := storageErr("get node", store.ErrRecordNotFound)
	assert.True(t, errors.Is(wrapped, store.ErrRecordNotFound))
	var se *StorageError
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "get node", se.Op)
}
