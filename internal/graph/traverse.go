package graph

import (
	"context"
	"sort"

	"github.com/agenthands/sage/internal/graph/model"
)

// Children returns the direct children of a node, one hop down the hierarchy.
func (e *Engine) Children(ctx context.Context, nodeID string) ([]model.ConceptNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.getNode(ctx, nodeID); err != nil {
		return nil, err
	}
	return e.children(ctx, nodeID)
}

// NodeWithChildren returns a node together with its immediate children.
func (e *Engine) NodeWithChildren(ctx context.Context, nodeID string) (*model.NodeWithChildren, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, err := e.getNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	children, err := e.children(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return &model.NodeWithChildren{Node: *n, Children: children}, nil
}

// Descendants returns every node below the given one in the hierarchy,
// excluding the node itself. The hierarchy is a tree, but the walk keeps a
// seen set so a corrupted parent link cannot loop it, the same guard
// Ancestors carries.
func (e *Engine) Descendants(ctx context.Context, nodeID string) ([]model.ConceptNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.getNode(ctx, nodeID); err != nil {
		return nil, err
	}

	var out []model.ConceptNode
	queue := []string{nodeID}
	seen := map[string]bool{nodeID: true}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := e.children(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// Ancestors returns the chain from the level-1 root down to the node's
// parent, root first. Empty for roots.
func (e *Engine) Ancestors(ctx context.Context, nodeID string) ([]model.ConceptNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, err := e.getNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	var chain []model.ConceptNode
	seen := map[string]bool{n.ID: true}
	for n.ParentID != nil {
		parent, err := e.getNode(ctx, *n.ParentID)
		if err != nil {
			return nil, err
		}
		if seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		chain = append(chain, *parent)
		n = parent
	}
	// Walked leaf-to-root; callers want root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Prerequisites returns the concepts required before the given one. With
// transitive set, the walk expands prerequisite edges up to maxDepth hops,
// reporting each concept once at the minimum depth it was reached. The depth
// bound is mandatory for termination: soft and recommended prerequisite
// edges may form cycles.
func (e *Engine) Prerequisites(ctx context.Context, nodeID string, strength model.PrerequisiteStrength, transitive bool, maxDepth int) ([]model.Prerequisite, error) {
	if strength != "" && !strength.Valid() {
		return nil, validationf(ReasonInvalidEnumValue, "unknown strength %q", strength)
	}
	if maxDepth <= 0 {
		maxDepth = e.maxDepth
	}
	if !transitive {
		maxDepth = 1
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.getNode(ctx, nodeID); err != nil {
		return nil, err
	}

	type frontierEntry struct {
		id    string
		depth int
	}
	var out []model.Prerequisite
	seen := map[string]bool{nodeID: true}
	frontier := []frontierEntry{{id: nodeID, depth: 0}}

	for len(frontier) > 0 {
		entry := frontier[0]
		frontier = frontier[1:]
		if entry.depth == maxDepth {
			continue
		}
		incoming, err := e.store.ListEdges(ctx, model.EdgeFilter{
			NodeID:    entry.id,
			Types:     []model.RelationshipType{model.RelPrerequisite},
			Strength:  strength,
			Direction: model.DirectionIncoming,
		})
		if err != nil {
			return nil, storageErr("list prerequisites", err)
		}
		for _, edge := range incoming {
			prereqID := edge.SourceID
			if seen[prereqID] {
				continue
			}
			seen[prereqID] = true
			node, err := e.getNode(ctx, prereqID)
			if err != nil {
				return nil, err
			}
			out = append(out, model.Prerequisite{
				Node:     *node,
				Strength: edge.Strength,
				Depth:    entry.depth + 1,
				Direct:   entry.depth == 0,
			})
			frontier = append(frontier, frontierEntry{id: prereqID, depth: entry.depth + 1})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out, nil
}

// WhatThisUnlocks returns the concepts this node enables, following outgoing
// enables edges. The inverse question, which concepts list this node among
// their prerequisites, is WhatDependsOnThis; the two are deliberately
// separate operations.
func (e *Engine) WhatThisUnlocks(ctx context.Context, nodeID string) ([]model.ConceptNode, error) {
	return e.outgoingTargets(ctx, nodeID, model.RelEnables)
}

// WhatDependsOnThis returns the concepts that have this node as a direct
// prerequisite: the targets of outgoing prerequisite edges, since a
// prerequisite edge points from the prerequisite to the dependent concept.
func (e *Engine) WhatDependsOnThis(ctx context.Context, nodeID string) ([]model.ConceptNode, error) {
	return e.outgoingTargets(ctx, nodeID, model.RelPrerequisite)
}

func (e *Engine) outgoingTargets(ctx context.Context, nodeID string, t model.RelationshipType) ([]model.ConceptNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.getNode(ctx, nodeID); err != nil {
		return nil, err
	}
	edges, err := e.store.ListEdges(ctx, model.EdgeFilter{
		NodeID:    nodeID,
		Types:     []model.RelationshipType{t},
		Direction: model.DirectionOutgoing,
	})
	if err != nil {
		return nil, storageErr("list outgoing edges", err)
	}
	var out []model.ConceptNode
	for _, edge := range edges {
		other := edge.TargetID
		if other == nodeID {
			other = edge.SourceID
		}
		node, err := e.getNode(ctx, other)
		if err != nil {
			return nil, err
		}
		out = append(out, *node)
	}
	return out, nil
}

func (e *Engine) children(ctx context.Context, nodeID string) ([]model.ConceptNode, error) {
	children, err := e.store.Children(ctx, nodeID)
	if err != nil {
		return nil, storageErr("list children", err)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}
