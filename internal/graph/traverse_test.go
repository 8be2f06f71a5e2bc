package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/sage/internal/graph/model"
)

func TestChildrenAndDescendants(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "CS", model.NodeDomain, 1, nil)
	algo := mustNode(t, e, "Algorithms", model.NodeCourse, 2, domain)
	ds := mustNode(t, e, "Data Structures", model.NodeCourse, 2, domain)
	sorting := mustNode(t, e, "Sorting", model.NodeModule, 3, algo)
	graphs := mustNode(t, e, "Graphs", model.NodeModule, 3, algo)

	children, err := e.Children(ctx, domain.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	// Children come back name-sorted.
	assert.Equal(t, "Algorithms", children[0].Name)
	assert.Equal(t, "Data Structures", children[1].Name)

	desc, err := e.Descendants(ctx, domain.ID)
	require.NoError(t, err)
	assert.Len(t, desc, 4)
	ids := make(map[string]bool)
	for _, d := range desc {
		ids[d.ID] = true
	}
	assert.True(t, ids[algo.ID] && ids[ds.ID] && ids[sorting.ID] && ids[graphs.ID])
	assert.False(t, ids[domain.ID], "the start node is excluded")

	leafDesc, err := e.Descendants(ctx, sorting.ID)
	require.NoError(t, err)
	assert.Empty(t, leafDesc)

	_, err = e.Children(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNodeWithChildren(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "CS", model.NodeDomain, 1, nil)
	mustNode(t, e, "Algorithms", model.NodeCourse, 2, domain)

	got, err := e.NodeWithChildren(ctx, domain.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ID, got.Node.ID)
	require.Len(t, got.Children, 1)
	assert.Equal(t, "Algorithms", got.Children[0].Name)
}

func TestAncestorsRootFirst(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	domain := mustNode(t, e, "CS", model.NodeDomain, 1, nil)
	course := mustNode(t, e, "Algorithms", model.NodeCourse, 2, domain)
	mod := mustNode(t, e, "Sorting", model.NodeModule, 3, course)
	topic := mustNode(t, e, "Quicksort", model.NodeTopic, 4, mod)

	chain, err := e.Ancestors(ctx, topic.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, domain.ID, chain[0].ID)
	assert.Equal(t, course.ID, chain[1].ID)
	assert.Equal(t, mod.ID, chain[2].ID)

	rootChain, err := e.Ancestors(ctx, domain.ID)
	require.NoError(t, err)
	assert.Empty(t, rootChain)
}

func TestPrerequisitesDirect(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	target := mustConcept(t, e, "Recursion")
	functions := mustConcept(t, e, "Functions")
	stack := mustConcept(t, e, "Call Stack")

	mustEdge(t, e, functions, target, model.RelPrerequisite, model.StrengthHard)
	mustEdge(t, e, stack, target, model.RelPrerequisite, model.StrengthSoft)

	direct, err := e.Prerequisites(ctx, target.ID, "", false, 0)
	require.NoError(t, err)
	require.Len(t, direct, 2)
	for _, p := range direct {
		assert.Equal(t, 1, p.Depth)
		assert.True(t, p.Direct)
	}

	hardOnly, err := e.Prerequisites(ctx, target.ID, model.StrengthHard, false, 0)
	require.NoError(t, err)
	require.Len(t, hardOnly, 1)
	assert.Equal(t, functions.ID, hardOnly[0].Node.ID)

	_, err = e.Prerequisites(ctx, target.ID, "firm", false, 0)
	assert.True(t, IsValidation(err, ReasonInvalidEnumValue), "%v", err)
}

func TestPrerequisitesTransitiveClosure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// B -> C -> D, and B also points at D directly. D's closure must report
	// each concept once at its minimum depth, direct only at depth 1.
	b := mustConcept(t, e, "B")
	c := mustConcept(t, e, "C")
	d := mustConcept(t, e, "D")

	mustEdge(t, e, b, c, model.RelPrerequisite, model.StrengthHard)
	mustEdge(t, e, c, d, model.RelPrerequisite, model.StrengthHard)
	mustEdge(t, e, b, d, model.RelPrerequisite, model.StrengthSoft)

	closure, err := e.Prerequisites(ctx, d.ID, "", true, 0)
	require.NoError(t, err)
	require.Len(t, closure, 2)

	byID := make(map[string]model.Prerequisite)
	for _, p := range closure {
		byID[p.Node.ID] = p
	}
	assert.Equal(t, 1, byID[c.ID].Depth)
	assert.True(t, byID[c.ID].Direct)
	assert.Equal(t, 1, byID[b.ID].Depth, "direct soft edge wins over the depth-2 route")
	assert.True(t, byID[b.ID].Direct)

	// Results come back shallow first.
	for i := 1; i < len(closure); i++ {
		assert.LessOrEqual(t, closure[i-1].Depth, closure[i].Depth)
	}
}

func TestPrerequisitesDepthBound(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// a chain a1 -> a2 -> a3 -> a4 feeding the target.
	nodes := []*model.ConceptNode{
		mustConcept(t, e, "a1"),
		mustConcept(t, e, "a2"),
		mustConcept(t, e, "a3"),
		mustConcept(t, e, "a4"),
	}
	for i := 0; i+1 < len(nodes); i++ {
		mustEdge(t, e, nodes[i], nodes[i+1], model.RelPrerequisite, model.StrengthHard)
	}

	bounded, err := e.Prerequisites(ctx, nodes[3].ID, "", true, 2)
	require.NoError(t, err)
	assert.Len(t, bounded, 2, "depth bound cuts the chain")

	full, err := e.Prerequisites(ctx, nodes[3].ID, "", true, 0)
	require.NoError(t, err)
	assert.Len(t, full, 3)
}

func TestPrerequisitesTerminateOnSoftCycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := mustConcept(t, e, "A")
	b := mustConcept(t, e, "B")
	mustEdge(t, e, a, b, model.RelPrerequisite, model.StrengthSoft)
	mustEdge(t, e, b, a, model.RelPrerequisite, model.StrengthSoft)

	closure, err := e.Prerequisites(ctx, a.ID, "", true, 0)
	require.NoError(t, err)
	require.Len(t, closure, 1)
	assert.Equal(t, b.ID, closure[0].Node.ID)
}

func TestUnlocksAndDependents(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	recursion := mustConcept(t, e, "Recursion")
	trees := mustConcept(t, e, "Tree Traversal")
	dp := mustConcept(t, e, "Dynamic Programming")
	sorting := mustConcept(t, e, "Merge Sort")

	mustEdge(t, e, recursion, trees, model.RelEnables, "")
	mustEdge(t, e, recursion, dp, model.RelEnables, "")
	mustEdge(t, e, recursion, sorting, model.RelPrerequisite, model.StrengthHard)

	unlocks, err := e.WhatThisUnlocks(ctx, recursion.ID)
	require.NoError(t, err)
	assert.Len(t, unlocks, 2)

	dependents, err := e.WhatDependsOnThis(ctx, recursion.ID)
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	assert.Equal(t, sorting.ID, dependents[0].ID)

	// Endpoints with nothing attached answer empty, not an error.
	none, err := e.WhatThisUnlocks(ctx, sorting.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
