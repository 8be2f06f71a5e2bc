package graph

import (
	"context"

	"github.com/agenthands/sage/internal/graph/model"
)

// learningOrderTypes are the edge types traversable in learning order, from a
// concept to what it unlocks: prerequisite (prerequisite -> dependent),
// enables, and extends.
var learningOrderTypes = []model.RelationshipType{
	model.RelPrerequisite,
	model.RelEnables,
	model.RelExtends,
}

// FindLearningPath searches for the shortest concept sequence from start to
// target over learning-order edges, bounded by maxDepth hops. BFS guarantees
// minimal edge count; ties resolve to the earliest-inserted route because
// stores list edges in insertion order. A nil path with nil error means no
// path exists within the bound, a normal outcome.
func (e *Engine) FindLearningPath(ctx context.Context, startID, targetID string, maxDepth int) (*model.LearningPath, error) {
	if maxDepth <= 0 {
		maxDepth = e.maxDepth
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.getNode(ctx, startID); err != nil {
		return nil, err
	}
	if _, err := e.getNode(ctx, targetID); err != nil {
		return nil, err
	}
	if startID == targetID {
		return e.assemblePath(ctx, []string{startID})
	}

	edges, err := e.store.ListEdges(ctx, model.EdgeFilter{Types: learningOrderTypes})
	if err != nil {
		return nil, storageErr("list learning-order edges", err)
	}
	adj := make(map[string][]string)
	for _, edge := range edges {
		adj[edge.SourceID] = append(adj[edge.SourceID], edge.TargetID)
	}

	predecessor := map[string]string{startID: ""}
	frontier := []string{startID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, neighbor := range adj[current] {
				if _, visited := predecessor[neighbor]; visited {
					continue
				}
				predecessor[neighbor] = current
				if neighbor == targetID {
					return e.assemblePath(ctx, reconstruct(predecessor, startID, targetID))
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return nil, nil
}

func reconstruct(predecessor map[string]string, startID, targetID string) []string {
	var reversed []string
	for id := targetID; id != ""; id = predecessor[id] {
		reversed = append(reversed, id)
		if id == startID {
			break
		}
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

func (e *Engine) assemblePath(ctx context.Context, ids []string) (*model.LearningPath, error) {
	path := &model.LearningPath{Nodes: make([]model.ConceptNode, 0, len(ids))}
	for _, id := range ids {
		node, err := e.getNode(ctx, id)
		if err != nil {
			return nil, err
		}
		path.Nodes = append(path.Nodes, *node)
		if node.EstimatedTimeMinutes != nil {
			path.TotalTimeMinutes += *node.EstimatedTimeMinutes
		}
		if node.Difficulty != "" {
			path.DifficultyProgression = append(path.DifficultyProgression, node.Difficulty)
		}
	}
	return path, nil
}
