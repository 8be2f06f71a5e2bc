// Package graph implements the concept knowledge-graph engine: a typed,
// hierarchical graph of learning concepts with cycle-free hard prerequisites,
// transitive closure queries, and shortest learning-path search.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/logger"
	"github.com/agenthands/sage/internal/store"
)

// DefaultMaxDepth bounds transitive traversals and path searches when the
// caller does not supply a bound. Transitive walks over soft prerequisite
// edges can cycle, so a depth bound is required for termination, not merely
// a performance knob.
const DefaultMaxDepth = 10

// DefaultSearchLimit caps text-search results when the caller asks for none.
const DefaultSearchLimit = 20

// Engine owns one user's concept graph. Writes are serialized behind a single
// writer lock so the cycle guard's read of the hard-prerequisite subgraph and
// the subsequent insert are atomic with respect to other writers; reads run
// concurrently.
type Engine struct {
	store    store.Store
	log      *logger.Logger
	maxDepth int
	mu       sync.RWMutex
}

func NewEngine(st store.Store, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{store: st, log: log.With("component", "graph-engine"), maxDepth: DefaultMaxDepth}
}

// SetMaxDepth overrides the fallback depth bound for transitive traversals
// and path searches. Values below one are ignored.
func (e *Engine) SetMaxDepth(d int) {
	if d > 0 {
		e.maxDepth = d
	}
}

// CascadeResult reports the blast radius of a cascading node delete.
type CascadeResult struct {
	NodesRemoved int `json:"nodes_removed"`
	EdgesRemoved int `json:"edges_removed"`
}

// CreateNode validates and persists a new concept node, returning it with the
// assigned id and timestamps.
func (e *Engine) CreateNode(ctx context.Context, n model.ConceptNode) (*model.ConceptNode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateNode(ctx, &n); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	n.ID = uuid.New().String()
	n.CreatedAt = now
	n.UpdatedAt = now

	if err := e.store.InsertNode(ctx, &n); err != nil {
		return nil, storageErr("insert node", err)
	}
	e.log.Debug("node created", "id", n.ID, "name", n.Name, "level", n.HierarchyLevel)
	return &n, nil
}

// Node returns the node with the given id, ErrNotFound otherwise.
func (e *Engine) Node(ctx context.Context, id string) (*model.ConceptNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getNode(ctx, id)
}

// NodesByName returns every node whose name or alias matches, case
// insensitively. Names are not unique across the graph; the caller
// disambiguates.
func (e *Engine) NodesByName(ctx context.Context, name string) ([]model.ConceptNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	nodes, err := e.store.NodesByName(ctx, name)
	if err != nil {
		return nil, storageErr("nodes by name", err)
	}
	return nodes, nil
}

// SearchNodes matches the query against node names, aliases and descriptions,
// with optional type, bloom-level and difficulty filters.
func (e *Engine) SearchNodes(ctx context.Context, q model.NodeQuery) ([]model.ConceptNode, error) {
	if q.NodeType != "" && !q.NodeType.Valid() {
		return nil, validationf(ReasonInvalidEnumValue, "unknown node type %q", q.NodeType)
	}
	if q.BloomLevel != "" && !q.BloomLevel.Valid() {
		return nil, validationf(ReasonInvalidEnumValue, "unknown bloom level %q", q.BloomLevel)
	}
	if q.Difficulty != "" && !q.Difficulty.Valid() {
		return nil, validationf(ReasonInvalidEnumValue, "unknown difficulty %q", q.Difficulty)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	nodes, err := e.store.SearchNodes(ctx, q)
	if err != nil {
		return nil, storageErr("search nodes", err)
	}
	return nodes, nil
}

// NodePatch carries the fields UpdateNode may change. Nil fields are left
// untouched; ClearParent detaches the node from its parent.
type NodePatch struct {
	Name                 *string
	NodeType             *model.NodeType
	HierarchyLevel       *int
	ParentID             *string
	ClearParent          bool
	Description          *string
	Aliases              *[]string
	Difficulty           *model.Difficulty
	BloomLevel           *model.BloomLevel
	EstimatedTimeMinutes *int
	ImportanceWeight     *float64
	Provenance           *model.Provenance
}

// UpdateNode applies the patch and re-runs hierarchy validation whenever the
// parent or level changes. The id is immutable.
func (e *Engine) UpdateNode(ctx context.Context, id string, patch NodePatch) (*model.ConceptNode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.getNode(ctx, id)
	if err != nil {
		return nil, err
	}

	// validateNode compares levels against the stored parent row, which for a
	// self-reference is this node's own pre-patch level, so the check below is
	// the only thing standing between a combined parent+level patch and a
	// self-parent cycle.
	if patch.ParentID != nil && *patch.ParentID == id {
		return nil, validationf(ReasonHierarchyMismatch, "node %s cannot be its own parent", id)
	}

	hierarchyChanged := patch.HierarchyLevel != nil || patch.ParentID != nil || patch.ClearParent

	if patch.Name != nil {
		n.Name = *patch.Name
	}
	if patch.NodeType != nil {
		n.NodeType = *patch.NodeType
	}
	if patch.HierarchyLevel != nil {
		n.HierarchyLevel = *patch.HierarchyLevel
	}
	if patch.ClearParent {
		n.ParentID = nil
	} else if patch.ParentID != nil {
		n.ParentID = patch.ParentID
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	if patch.Aliases != nil {
		n.Aliases = *patch.Aliases
	}
	if patch.Difficulty != nil {
		n.Difficulty = *patch.Difficulty
	}
	if patch.BloomLevel != nil {
		n.BloomLevel = *patch.BloomLevel
	}
	if patch.EstimatedTimeMinutes != nil {
		n.EstimatedTimeMinutes = patch.EstimatedTimeMinutes
	}
	if patch.ImportanceWeight != nil {
		n.ImportanceWeight = patch.ImportanceWeight
	}
	if patch.Provenance != nil {
		n.Provenance = patch.Provenance
	}

	if err := e.validateNode(ctx, n); err != nil {
		return nil, err
	}
	if hierarchyChanged {
		// Children sit at level+1; moving this node would strand them.
		children, err := e.store.Children(ctx, n.ID)
		if err != nil {
			return nil, storageErr("list children", err)
		}
		for _, child := range children {
			if child.HierarchyLevel != n.HierarchyLevel+1 {
				return nil, validationf(ReasonHierarchyMismatch,
					"node %s has child %s at level %d, incompatible with new level %d",
					n.ID, child.ID, child.HierarchyLevel, n.HierarchyLevel)
			}
		}
	}

	n.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateNode(ctx, n); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("update node", err)
	}
	return n, nil
}

// DeleteNode removes the node, every descendant, and every edge incident to
// any removed node. Destructive and not undoable.
func (e *Engine) DeleteNode(ctx context.Context, id string) (*CascadeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.getNode(ctx, id); err != nil {
		return nil, err
	}

	doomed := []string{id}
	queue := []string{id}
	seen := map[string]bool{id: true}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := e.store.Children(ctx, current)
		if err != nil {
			return nil, storageErr("list children", err)
		}
		for _, child := range children {
			// A corrupted parent link must not loop the walk.
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			doomed = append(doomed, child.ID)
			queue = append(queue, child.ID)
		}
	}

	edgesRemoved, err := e.store.DeleteEdgesTouching(ctx, doomed)
	if err != nil {
		return nil, storageErr("delete incident edges", err)
	}
	nodesRemoved, err := e.store.DeleteNodes(ctx, doomed)
	if err != nil {
		return nil, storageErr("delete nodes", err)
	}

	e.log.Info("node cascade delete", "id", id, "nodes_removed", nodesRemoved, "edges_removed", edgesRemoved)
	return &CascadeResult{NodesRemoved: nodesRemoved, EdgesRemoved: edgesRemoved}, nil
}

// Stats reports graph totals and metadata coverage.
func (e *Engine) Stats(ctx context.Context) (*model.GraphStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	return stats, nil
}

func (e *Engine) getNode(ctx context.Context, id string) (*model.ConceptNode, error) {
	n, err := e.store.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("get node", err)
	}
	return n, nil
}

// validateNode enforces the structural node invariants: enum membership,
// value ranges, and the hierarchy rules (level in [1,5], roots have no
// parent, child level is parent level + 1).
func (e *Engine) validateNode(ctx context.Context, n *model.ConceptNode) error {
	if n.Name == "" {
		return validationf(ReasonMissingRequiredField, "name is required")
	}
	if !n.NodeType.Valid() {
		return validationf(ReasonInvalidEnumValue, "unknown node type %q", n.NodeType)
	}
	if n.HierarchyLevel < model.MinHierarchyLevel || n.HierarchyLevel > model.MaxHierarchyLevel {
		return validationf(ReasonOutOfRangeValue, "hierarchy level %d outside [%d,%d]",
			n.HierarchyLevel, model.MinHierarchyLevel, model.MaxHierarchyLevel)
	}
	if n.Difficulty != "" && !n.Difficulty.Valid() {
		return validationf(ReasonInvalidEnumValue, "unknown difficulty %q", n.Difficulty)
	}
	if n.BloomLevel != "" && !n.BloomLevel.Valid() {
		return validationf(ReasonInvalidEnumValue, "unknown bloom level %q", n.BloomLevel)
	}
	if n.EstimatedTimeMinutes != nil && *n.EstimatedTimeMinutes < 0 {
		return validationf(ReasonOutOfRangeValue, "estimated time must be >= 0, got %d", *n.EstimatedTimeMinutes)
	}
	if n.ImportanceWeight != nil && (*n.ImportanceWeight < 0 || *n.ImportanceWeight > 1) {
		return validationf(ReasonOutOfRangeValue, "importance weight %v outside [0,1]", *n.ImportanceWeight)
	}
	if err := validateProvenance(n.Provenance); err != nil {
		return err
	}

	if n.HierarchyLevel == model.MinHierarchyLevel {
		if n.ParentID != nil {
			return validationf(ReasonRootMustHaveNoParent, "level-1 node %q cannot have a parent", n.Name)
		}
		return nil
	}
	if n.ParentID == nil {
		return nil
	}
	parent, err := e.store.GetNode(ctx, *n.ParentID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return fmt.Errorf("parent %s: %w", *n.ParentID, ErrNotFound)
		}
		return storageErr("get parent", err)
	}
	if n.HierarchyLevel != parent.HierarchyLevel+1 {
		return validationf(ReasonHierarchyMismatch,
			"node level %d must be parent level %d + 1", n.HierarchyLevel, parent.HierarchyLevel)
	}
	return nil
}

func validateProvenance(p *model.Provenance) error {
	if p == nil {
		return nil
	}
	if p.ExtractionMethod != "" && !p.ExtractionMethod.Valid() {
		return validationf(ReasonInvalidEnumValue, "unknown extraction method %q", p.ExtractionMethod)
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return validationf(ReasonOutOfRangeValue, "provenance confidence %v outside [0,1]", p.ConfidenceScore)
	}
	return nil
}
