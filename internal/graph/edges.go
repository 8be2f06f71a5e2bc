package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/store"
)

// CreateRelationship validates and persists a new edge. Symmetric types
// (similar_to, related_to, contradicts) are normalized to undirected; a zero
// confidence is treated as unset and defaults to 1.0. Hard prerequisite
// edges pass through the cycle guard before commit.
func (e *Engine) CreateRelationship(ctx context.Context, edge model.RelationshipEdge) (*model.RelationshipEdge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateEdge(ctx, &edge); err != nil {
		return nil, err
	}

	if _, err := e.store.FindEdge(ctx, edge.SourceID, edge.TargetID, edge.RelationshipType); err == nil {
		return nil, validationf(ReasonDuplicateEdge, "%s edge %s -> %s already exists",
			edge.RelationshipType, edge.SourceID, edge.TargetID)
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, storageErr("find edge", err)
	}

	if edge.RelationshipType == model.RelPrerequisite && edge.Strength == model.StrengthHard {
		cyclic, err := e.wouldCreateCycle(ctx, edge.SourceID, edge.TargetID, "")
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, validationf(ReasonCircularPrerequisite,
				"hard prerequisite %s -> %s would close a cycle", edge.SourceID, edge.TargetID)
		}
	}

	edge.ID = uuid.New().String()
	edge.CreatedAt = time.Now().UTC()
	if err := e.store.InsertEdge(ctx, &edge); err != nil {
		return nil, storageErr("insert edge", err)
	}
	e.log.Debug("edge created", "id", edge.ID, "type", edge.RelationshipType,
		"source", edge.SourceID, "target", edge.TargetID)
	return &edge, nil
}

// Relationship returns the edge with the given id.
func (e *Engine) Relationship(ctx context.Context, id string) (*model.RelationshipEdge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getEdge(ctx, id)
}

// Relationships lists edges incident to a node, optionally filtered by type
// and direction. Undirected edges match either direction.
func (e *Engine) Relationships(ctx context.Context, nodeID string, typeFilter model.RelationshipType, direction model.EdgeDirection) ([]model.RelationshipEdge, error) {
	if typeFilter != "" && !typeFilter.Valid() {
		return nil, validationf(ReasonInvalidEnumValue, "unknown relationship type %q", typeFilter)
	}
	if direction == "" {
		direction = model.DirectionBoth
	}
	if !direction.Valid() {
		return nil, validationf(ReasonInvalidEnumValue, "unknown direction %q", direction)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.getNode(ctx, nodeID); err != nil {
		return nil, err
	}
	filter := model.EdgeFilter{NodeID: nodeID, Direction: direction}
	if typeFilter != "" {
		filter.Types = []model.RelationshipType{typeFilter}
	}
	edges, err := e.store.ListEdges(ctx, filter)
	if err != nil {
		return nil, storageErr("list edges", err)
	}
	return edges, nil
}

// EdgePatch carries the only mutable edge fields. Endpoints and type are
// immutable; delete and recreate to change them.
type EdgePatch struct {
	Confidence   *float64
	EvidenceText *string
	Strength     *model.PrerequisiteStrength
}

// UpdateRelationship applies the patch. Raising a prerequisite edge to hard
// strength re-runs the cycle guard against the graph without this edge, the
// same check an insert gets.
func (e *Engine) UpdateRelationship(ctx context.Context, id string, patch EdgePatch) (*model.RelationshipEdge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	edge, err := e.getEdge(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Confidence != nil {
		if *patch.Confidence < 0 || *patch.Confidence > 1 {
			return nil, validationf(ReasonOutOfRangeValue, "confidence %v outside [0,1]", *patch.Confidence)
		}
		edge.Confidence = *patch.Confidence
	}
	if patch.EvidenceText != nil {
		edge.EvidenceText = *patch.EvidenceText
	}
	if patch.Strength != nil {
		if edge.RelationshipType != model.RelPrerequisite {
			return nil, validationf(ReasonInvalidEnumValue,
				"strength applies only to prerequisite edges, not %s", edge.RelationshipType)
		}
		if !patch.Strength.Valid() {
			return nil, validationf(ReasonInvalidEnumValue, "unknown strength %q", *patch.Strength)
		}
		if *patch.Strength == model.StrengthHard && edge.Strength != model.StrengthHard {
			cyclic, err := e.wouldCreateCycle(ctx, edge.SourceID, edge.TargetID, edge.ID)
			if err != nil {
				return nil, err
			}
			if cyclic {
				return nil, validationf(ReasonCircularPrerequisite,
					"raising %s -> %s to hard would close a cycle", edge.SourceID, edge.TargetID)
			}
		}
		edge.Strength = *patch.Strength
	}

	if err := e.store.UpdateEdge(ctx, edge); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("edge %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("update edge", err)
	}
	return edge, nil
}

// DeleteRelationship removes the edge. No cascading effects.
func (e *Engine) DeleteRelationship(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.DeleteEdge(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return fmt.Errorf("edge %s: %w", id, ErrNotFound)
		}
		return storageErr("delete edge", err)
	}
	return nil
}

func (e *Engine) getEdge(ctx context.Context, id string) (*model.RelationshipEdge, error) {
	edge, err := e.store.GetEdge(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("edge %s: %w", id, ErrNotFound)
		}
		return nil, storageErr("get edge", err)
	}
	return edge, nil
}

func (e *Engine) validateEdge(ctx context.Context, edge *model.RelationshipEdge) error {
	if !edge.RelationshipType.Valid() {
		return validationf(ReasonInvalidEnumValue, "unknown relationship type %q", edge.RelationshipType)
	}
	if edge.SourceID == edge.TargetID {
		return validationf(ReasonSelfLoop, "edge endpoints must differ, got %s twice", edge.SourceID)
	}
	if edge.Strength != "" {
		if edge.RelationshipType != model.RelPrerequisite {
			return validationf(ReasonInvalidEnumValue,
				"strength applies only to prerequisite edges, not %s", edge.RelationshipType)
		}
		if !edge.Strength.Valid() {
			return validationf(ReasonInvalidEnumValue, "unknown strength %q", edge.Strength)
		}
	}
	if edge.Confidence == 0 {
		edge.Confidence = 1.0
	}
	if edge.Confidence < 0 || edge.Confidence > 1 {
		return validationf(ReasonOutOfRangeValue, "confidence %v outside [0,1]", edge.Confidence)
	}
	if err := validateProvenance(edge.Provenance); err != nil {
		return err
	}
	edge.IsDirected = !edge.RelationshipType.Symmetric()

	if _, err := e.getNode(ctx, edge.SourceID); err != nil {
		return err
	}
	if _, err := e.getNode(ctx, edge.TargetID); err != nil {
		return err
	}
	return nil
}
