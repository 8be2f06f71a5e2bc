// Package store defines the storage contract for the concept graph and its
// bundled backends (sqlite, memgraph, in-memory).
//
// Backends persist records and answer indexed lookups; all graph semantics
// (hierarchy validation, cycle prevention, traversal) live above this layer,
// so a backend never needs recursive queries.
package store

import (
	"context"
	"errors"

	"github.com/agenthands/sage/internal/graph/model"
)

// ErrRecordNotFound is returned by reads, updates and deletes that reference
// an id the backend does not hold.
var ErrRecordNotFound = errors.New("record not found")

// Store is the backend contract. Edge listings return edges in insertion
// order; callers rely on that for deterministic path tie-breaking.
type Store interface {
	// BuildIndices creates the supporting indices (parent_id, hierarchy_level,
	// name, source_id, target_id, relationship_type, and the unique
	// (source, target, type) triple). Idempotent.
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error

	InsertNode(ctx context.Context, n *model.ConceptNode) error
	GetNode(ctx context.Context, id string) (*model.ConceptNode, error)
	// NodesByName matches name or any alias, case-insensitively.
	NodesByName(ctx context.Context, name string) ([]model.ConceptNode, error)
	UpdateNode(ctx context.Context, n *model.ConceptNode) error
	// DeleteNodes removes the given nodes in one atomic batch and reports how
	// many existed.
	DeleteNodes(ctx context.Context, ids []string) (int, error)
	Children(ctx context.Context, parentID string) ([]model.ConceptNode, error)
	SearchNodes(ctx context.Context, q model.NodeQuery) ([]model.ConceptNode, error)

	InsertEdge(ctx context.Context, e *model.RelationshipEdge) error
	GetEdge(ctx context.Context, id string) (*model.RelationshipEdge, error)
	// FindEdge looks up the unique edge for an ordered (source, target, type)
	// triple, ErrRecordNotFound when absent.
	FindEdge(ctx context.Context, sourceID, targetID string, t model.RelationshipType) (*model.RelationshipEdge, error)
	ListEdges(ctx context.Context, f model.EdgeFilter) ([]model.RelationshipEdge, error)
	UpdateEdge(ctx context.Context, e *model.RelationshipEdge) error
	DeleteEdge(ctx context.Context, id string) error
	// DeleteEdgesTouching removes every edge with any of the given ids as
	// source or target and reports how many were removed.
	DeleteEdgesTouching(ctx context.Context, nodeIDs []string) (int, error)

	Stats(ctx context.Context) (*model.GraphStats, error)
}
