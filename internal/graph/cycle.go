package graph

import (
	"context"

	"github.com/agenthands/sage/internal/graph/model"
)

// wouldCreateCycle reports whether inserting a hard prerequisite edge
// source -> target would close a cycle in the hard-prerequisite subgraph.
// Soft and recommended prerequisites, and every other relationship type, are
// exempt and may cycle freely.
//
// The check is a breadth-first reachability search from target over existing
// hard edges: if source is reachable from target, the new edge completes a
// loop. excludeEdgeID skips one edge, used when an existing edge is being
// re-validated on a strength upgrade. O(V+E) over the hard subgraph.
func (e *Engine) wouldCreateCycle(ctx context.Context, sourceID, targetID, excludeEdgeID string) (bool, error) {
	hard, err := e.store.ListEdges(ctx, model.EdgeFilter{
		Types:    []model.RelationshipType{model.RelPrerequisite},
		Strength: model.StrengthHard,
	})
	if err != nil {
		return false, storageErr("list hard prerequisites", err)
	}

	adj := make(map[string][]string, len(hard))
	for _, edge := range hard {
		if edge.ID == excludeEdgeID {
			continue
		}
		adj[edge.SourceID] = append(adj[edge.SourceID], edge.TargetID)
	}

	visited := map[string]bool{targetID: true}
	queue := []string{targetID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == sourceID {
			return true, nil
		}
		for _, next := range adj[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false, nil
}
